package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/moltocasto/podcast-qa/internal/domain"
	"github.com/moltocasto/podcast-qa/internal/port"
)

type episodeKey struct{ pid, eid int64 }

type fakeEpisodes struct {
	mu        sync.Mutex
	podcasts  map[int64]domain.Podcast
	episodes  map[episodeKey]domain.Episode
	inserted  []domain.Episode
	questions map[episodeKey][]string
}

func newFakeEpisodes() *fakeEpisodes {
	return &fakeEpisodes{
		podcasts:  map[int64]domain.Podcast{},
		episodes:  map[episodeKey]domain.Episode{},
		questions: map[episodeKey][]string{},
	}
}

func (f *fakeEpisodes) put(e domain.Episode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.episodes[episodeKey{e.PodcastID, e.EpisodeID}] = e
}

func (f *fakeEpisodes) ListPodcasts(context.Context) ([]domain.Podcast, error) {
	var out []domain.Podcast
	for _, p := range f.podcasts {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeEpisodes) GetPodcast(_ context.Context, id int64) (*domain.Podcast, error) {
	p, ok := f.podcasts[id]
	if !ok {
		return nil, port.ErrPodcastNotFound
	}
	return &p, nil
}

func (f *fakeEpisodes) ListTranscribedEpisodes(_ context.Context, pid int64, limit int) ([]domain.Episode, error) {
	var out []domain.Episode
	for k, e := range f.episodes {
		if k.pid == pid && e.Transcribed && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEpisodes) GetEpisode(_ context.Context, pid, eid int64) (*domain.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.episodes[episodeKey{pid, eid}]
	if !ok {
		return nil, port.ErrEpisodeNotFound
	}
	return &e, nil
}

func (f *fakeEpisodes) InsertEpisodes(_ context.Context, pid int64, eps []domain.Episode) (int, error) {
	n := 0
	for _, e := range eps {
		k := episodeKey{pid, e.EpisodeID}
		if _, ok := f.episodes[k]; ok {
			continue
		}
		e.PodcastID = pid
		f.episodes[k] = e
		f.inserted = append(f.inserted, e)
		n++
	}
	return n, nil
}

func (f *fakeEpisodes) SaveTranscript(_ context.Context, pid, eid int64, raw []byte, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := episodeKey{pid, eid}
	e, ok := f.episodes[k]
	if !ok {
		return port.ErrEpisodeNotFound
	}
	e.Transcript, e.TranscriptText, e.Transcribed = raw, text, true
	f.episodes[k] = e
	return nil
}

func (f *fakeEpisodes) SaveQuestions(_ context.Context, pid, eid int64, questions []string) error {
	k := episodeKey{pid, eid}
	if _, ok := f.episodes[k]; !ok {
		return port.ErrEpisodeNotFound
	}
	f.questions[k] = questions
	return nil
}

// fakeEmbedder returns one vector per text: [len(text), index].
type fakeEmbedder struct {
	calls [][]string
	err   error
	drop  int // vectors to drop from the response
	dim   int // extra zero dimensions
}

func (f *fakeEmbedder) vector(text string, i int) []float32 {
	v := []float32{float32(len(text)), float32(i)}
	return append(v, make([]float32, f.dim)...)
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, []string{text})
	return f.vector(text, 0), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for i, t := range texts {
		out = append(out, f.vector(t, i))
	}
	return out[:len(out)-f.drop], nil
}

type fakeStore struct {
	records   []domain.EmbeddingRecord
	attempts  int
	failAt    map[int]bool // attempt numbers that fail
	deleteErr error
	deleted   int
	similar   []domain.SimilarChunk
	searched  []int64
}

func (f *fakeStore) StoreEmbedding(_ context.Context, rec *domain.EmbeddingRecord) error {
	n := f.attempts
	f.attempts++
	if f.failAt[n] {
		return errors.New("disk full")
	}
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeStore) DeleteEpisodeEmbeddings(_ context.Context, pid, eid int64) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
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
	f.deleted++
	return n, nil
}

// ReplaceEpisodeEmbeddings applies the swap to a copy and keeps it only when
// every insert succeeds.
func (f *fakeStore) ReplaceEpisodeEmbeddings(_ context.Context, pid, eid int64, recs []domain.EmbeddingRecord) (int64, error) {
	if f.deleteErr != nil {
		return 0, &port.StorageError{Index: -1, EpisodeID: eid, Err: f.deleteErr}
	}
	var (
		kept []domain.EmbeddingRecord
		n    int64
	)
	for _, r := range f.records {
		if r.PodcastID == pid && r.EpisodeID == eid {
			n++
			continue
		}
		kept = append(kept, r)
	}
	for i := range recs {
		attempt := f.attempts
		f.attempts++
		if f.failAt[attempt] {
			return 0, &port.StorageError{Index: i, EpisodeID: eid, Err: errors.New("disk full")}
		}
		recs[i].ID = int64(len(kept) + 1)
		kept = append(kept, recs[i])
	}
	f.records = kept
	f.deleted++
	return n, nil
}

func (f *fakeStore) ListEpisodeEmbeddings(_ context.Context, pid, eid int64) ([]domain.EmbeddingRecord, error) {
	var out []domain.EmbeddingRecord
	for _, r := range f.records {
		if r.PodcastID == pid && r.EpisodeID == eid {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) SearchSimilar(_ context.Context, pid, eid int64, _ []float32, limit int) ([]domain.SimilarChunk, error) {
	f.searched = append(f.searched, pid, eid, int64(limit))
	return f.similar, nil
}

type wordTokenizer struct{}

func (wordTokenizer) Encode(text string) ([]int, error) {
	return make([]int, len(strings.Fields(text))), nil
}

type fakeAI struct {
	fakeEmbedder
	answer       string
	chatErr      error
	streamErr    error
	systemPrompt string
	userPrompt   string
}

func (f *fakeAI) ModelName() string { return "test-model" }

func (f *fakeAI) Chat(_ context.Context, system, user string) (string, error) {
	f.systemPrompt, f.userPrompt = system, user
	return f.answer, f.chatErr
}

func (f *fakeAI) ChatStream(_ context.Context, system, user string) (<-chan string, <-chan error, error) {
	f.systemPrompt, f.userPrompt = system, user
	if f.chatErr != nil {
		return nil, nil, f.chatErr
	}
	ch := make(chan string, len(f.answer))
	for _, w := range strings.SplitAfter(f.answer, " ") {
		ch <- w
	}
	close(ch)
	errc := make(chan error, 1)
	if f.streamErr != nil {
		errc <- f.streamErr
	}
	close(errc)
	return ch, errc, nil
}

type fakeQueue struct {
	errs []error // returned in order before any job
	jobs []port.EmbedJob
}

func (q *fakeQueue) Enqueue(_ context.Context, job port.EmbedJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (*port.EmbedJob, error) {
	if len(q.errs) > 0 {
		err := q.errs[0]
		q.errs = q.errs[1:]
		return nil, err
	}
	if len(q.jobs) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return &job, nil
}
