package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
)

type episodeKey struct{ pid, eid int64 }

type fakeRepo struct {
	mu       sync.Mutex
	podcasts map[int64]domain.Podcast
	episodes map[episodeKey]domain.Episode
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		podcasts: map[int64]domain.Podcast{1: {ID: 1, Name: "Moltocasto", FeedURL: "https://example.com/feed.xml"}},
		episodes: map[episodeKey]domain.Episode{},
	}
}

func (f *fakeRepo) put(e domain.Episode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.episodes[episodeKey{e.PodcastID, e.EpisodeID}] = e
}

func (f *fakeRepo) ListPodcasts(context.Context) ([]domain.Podcast, error) {
	return []domain.Podcast{f.podcasts[1]}, nil
}

func (f *fakeRepo) GetPodcast(_ context.Context, id int64) (*domain.Podcast, error) {
	p, ok := f.podcasts[id]
	if !ok {
		return nil, port.ErrPodcastNotFound
	}
	return &p, nil
}

func (f *fakeRepo) ListTranscribedEpisodes(_ context.Context, pid int64, limit int) ([]domain.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Episode
	for k, e := range f.episodes {
		if k.pid == pid && e.Transcribed && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetEpisode(_ context.Context, pid, eid int64) (*domain.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.episodes[episodeKey{pid, eid}]
	if !ok {
		return nil, port.ErrEpisodeNotFound
	}
	return &e, nil
}

func (f *fakeRepo) InsertEpisodes(context.Context, int64, []domain.Episode) (int, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeRepo) SaveTranscript(context.Context, int64, int64, []byte, string) error {
	return errors.New("not implemented")
}

func (f *fakeRepo) SaveQuestions(context.Context, int64, int64, []string) error {
	return errors.New("not implemented")
}

type fakeVectors struct {
	mu      sync.Mutex
	records []domain.EmbeddingRecord
}

func (f *fakeVectors) StoreEmbedding(_ context.Context, rec *domain.EmbeddingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeVectors) DeleteEpisodeEmbeddings(_ context.Context, pid, eid int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	var n int64
	for _, r := range f.records {
		if r.PodcastID == pid && r.EpisodeID == eid {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return n, nil
}

func (f *fakeVectors) ReplaceEpisodeEmbeddings(ctx context.Context, pid, eid int64, recs []domain.EmbeddingRecord) (int64, error) {
	n, _ := f.DeleteEpisodeEmbeddings(ctx, pid, eid)
	for i := range recs {
		_ = f.StoreEmbedding(ctx, &recs[i])
	}
	return n, nil
}

func (f *fakeVectors) ListEpisodeEmbeddings(_ context.Context, pid, eid int64) ([]domain.EmbeddingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EmbeddingRecord
	for _, r := range f.records {
		if r.PodcastID == pid && r.EpisodeID == eid {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeVectors) SearchSimilar(_ context.Context, pid, eid int64, _ []float32, limit int) ([]domain.SimilarChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SimilarChunk
	for _, r := range f.records {
		if r.PodcastID == pid && (eid == 0 || r.EpisodeID == eid) && len(out) < limit {
			out = append(out, domain.SimilarChunk{EmbeddingRecord: r, Title: "Episode"})
		}
	}
	return out, nil
}

type fakeAI struct {
	answer    string
	tokens    []string
	streamErr error // reported after tokens
}

func (f *fakeAI) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }

func (f *fakeAI) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *fakeAI) ModelName() string { return "fake-model" }

func (f *fakeAI) Chat(context.Context, string, string) (string, error) { return f.answer, nil }

func (f *fakeAI) ChatStream(ctx context.Context, _, _ string) (<-chan string, <-chan error, error) {
	ch := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(ch)
		for _, t := range f.tokens {
			select {
			case ch <- t:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		if f.streamErr != nil {
			errc <- f.streamErr
		}
	}()
	return ch, errc, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []port.EmbedJob
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, job port.EmbedJob) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeQueue) Dequeue(ctx context.Context) (*port.EmbedJob, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type wordTokenizer struct{}

func (wordTokenizer) Encode(text string) ([]int, error) {
	return make([]int, len(strings.Fields(text))), nil
}

// transcriptJSON is a two-phrase speech result.
const transcriptJSON = `{"recognizedPhrases":[
	{"offsetInTicks": 0, "nBest":[{"display":"Welcome to the show."}]},
	{"offsetInTicks": 20000000, "nBest":[{"display":"Today we talk about Go."}]}
]}`

func transcribedEpisode(pid, eid int64) domain.Episode {
	return domain.Episode{
		PodcastID:      pid,
		EpisodeID:      eid,
		Title:          fmt.Sprintf("Episode %d", eid),
		Transcribed:    true,
		Transcript:     []byte(transcriptJSON),
		TranscriptText: "Welcome to the show. Today we talk about Go.",
	}
}
