package orchestrator

import (
	"context"
	"sort"
	"sync"

	"post-judge/model"
	"post-judge/storage"
)

// memStore is an in-memory Store with failure injection.
type memStore struct {
	mu        sync.Mutex
	posts     map[string]*model.Post
	judgments map[string]map[model.Persona]*model.Judgment

	updateErr      error
	putPostErr     error
	putJudgmentErr map[model.Persona]error
	conflicts      int
	getPostCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		posts:          make(map[string]*model.Post),
		judgments:      make(map[string]map[model.Persona]*model.Judgment),
		putJudgmentErr: make(map[model.Persona]error),
	}
}

func cloneJudgment(j *model.Judgment) *model.Judgment {
	c := *j
	if j.ErrorCode != nil {
		v := *j.ErrorCode
		c.ErrorCode = &v
	}
	if j.Scores != nil {
		v := *j.Scores
		c.Scores = &v
	}
	if j.Comment != nil {
		v := *j.Comment
		c.Comment = &v
	}
	return &c
}

// seed stores rows directly, bypassing injected failures.
func (m *memStore) seed(p *model.Post, js ...*model.Judgment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = p.Clone()
	for _, j := range js {
		if m.judgments[j.PostID] == nil {
			m.judgments[j.PostID] = make(map[model.Persona]*model.Judgment)
		}
		m.judgments[j.PostID][j.Persona] = cloneJudgment(j)
	}
}

func (m *memStore) GetPost(_ context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getPostCalls++
	p, ok := m.posts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memStore) PutPost(_ context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putPostErr != nil {
		return m.putPostErr
	}
	m.posts[p.ID] = p.Clone()
	return nil
}

func (m *memStore) UpdatePostResult(_ context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	cur, ok := m.posts[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if m.conflicts > 0 {
		m.conflicts--
		cur.Version++
		return storage.ErrVersionConflict
	}
	if cur.Version != p.Version {
		return storage.ErrVersionConflict
	}
	p.Version++
	m.posts[p.ID] = p.Clone()
	return nil
}

func (m *memStore) GetJudgment(_ context.Context, postID string, persona model.Persona) (*model.Judgment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.judgments[postID][persona]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneJudgment(j), nil
}

func (m *memStore) PutJudgment(_ context.Context, j *model.Judgment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.putJudgmentErr[j.Persona]; err != nil {
		return err
	}
	if m.judgments[j.PostID] == nil {
		m.judgments[j.PostID] = make(map[model.Persona]*model.Judgment)
	}
	m.judgments[j.PostID][j.Persona] = cloneJudgment(j)
	return nil
}

func (m *memStore) DeleteJudgment(_ context.Context, postID string, persona model.Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.judgments[postID], persona)
	return nil
}

func (m *memStore) ListJudgments(_ context.Context, postID string) ([]*model.Judgment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Judgment
	for _, p := range model.Personas {
		if j, ok := m.judgments[postID][p]; ok {
			out = append(out, cloneJudgment(j))
		}
	}
	return out, nil
}

func (m *memStore) scored() []*model.Post {
	var out []*model.Post
	for _, p := range m.posts {
		if p.Status == model.StatusScored && p.ScoreKey != nil {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].ScoreKey < *out[j].ScoreKey })
	return out
}

func (m *memStore) QueryScored(_ context.Context, limit int) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.scored()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountScoredBefore(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.scored() {
		if *p.ScoreKey < key {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountScored(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scored()), nil
}

func (m *memStore) post(id string) *model.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		return p.Clone()
	}
	return nil
}

func (m *memStore) judgment(postID string, persona model.Persona) *model.Judgment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.judgments[postID][persona]; ok {
		return cloneJudgment(j)
	}
	return nil
}
