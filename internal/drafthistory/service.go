// Package drafthistory keeps an auditable git log of every draft iteration a
// workflow produces. Failures here never fail the workflow; callers log and
// move on.
package drafthistory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const draftFile = "draft.md"

// CommitInfo describes one recorded draft iteration.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// RecordDraft commits the draft text for one iteration into the workflow's
// history repository, creating the repository on first use.
func (s *Service) RecordDraft(workflowID string, iteration int, draft, author string) (CommitInfo, error) {
	lock := s.workflowLock(workflowID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(workflowID)
	if err != nil {
		return CommitInfo{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	path := filepath.Join(s.repoPath(workflowID), draftFile)
	if err := os.WriteFile(path, []byte(draft+"\n"), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write draft: %w", err)
	}

	if _, err := worktree.Add(draftFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add draft: %w", err)
	}

	hash, err := worktree.Commit(fmt.Sprintf("Draft iteration %d", iteration), &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: "workflow@nyayaflow.local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit draft: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History returns draft commits newest-first, up to limit (0 = all).
func (s *Service) History(workflowID string, limit int) ([]CommitInfo, error) {
	lock := s.workflowLock(workflowID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(workflowID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Remove deletes a workflow's history repository.
func (s *Service) Remove(workflowID string) error {
	lock := s.workflowLock(workflowID)
	lock.Lock()
	defer lock.Unlock()
	return os.RemoveAll(s.repoPath(workflowID))
}

func (s *Service) openOrInit(workflowID string) (*git.Repository, error) {
	path := s.repoPath(workflowID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(workflowID string) string {
	return filepath.Join(s.baseDir, workflowID)
}

func (s *Service) workflowLock(workflowID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[workflowID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[workflowID] = lock
	return lock
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}
