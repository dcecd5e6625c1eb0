package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	directoryTTL      = 5 * time.Minute
	directoryCacheKey = "users"
)

type usersLoadedMsg struct {
	users []QAUser
	err   error
}

// userDirectory lists the users seen in the newest Q&A rows. The backend
// has no user listing, so the first directoryPageSize rows stand in for it.
type userDirectory struct {
	backend Backend
	cache   *cache.Cache
	log     zerolog.Logger
}

func newUserDirectory(backend Backend, log zerolog.Logger) *userDirectory {
	return &userDirectory{
		backend: backend,
		cache:   cache.New(directoryTTL, 2*directoryTTL),
		log:     log.With().Str("component", "user_directory").Logger(),
	}
}

func (d *userDirectory) Users(ctx context.Context) ([]QAUser, error) {
	if cached, ok := d.cache.Get(directoryCacheKey); ok {
		if users, ok := cached.([]QAUser); ok {
			return users, nil
		}
	}

	page, err := d.backend.ListQARecords(ctx, QueryDescriptor{Page: 1, PageSize: directoryPageSize})
	if err != nil {
		return nil, fmt.Errorf("load user directory: %w", err)
	}
	users := distinctUsers(page.Items)
	d.cache.Set(directoryCacheKey, users, cache.DefaultExpiration)
	d.log.Debug().Int("users", len(users)).Int("rows", len(page.Items)).Msg("user directory refreshed")
	return users, nil
}

// Invalidate forces the next lookup to hit the backend.
func (d *userDirectory) Invalidate() {
	d.cache.Delete(directoryCacheKey)
}

func (d *userDirectory) LoadCmd() tea.Cmd {
	return func() tea.Msg {
		users, err := d.Users(context.Background())
		return usersLoadedMsg{users: users, err: err}
	}
}

func distinctUsers(records []QARecord) []QAUser {
	seen := make(map[recordID]bool, len(records))
	users := make([]QAUser, 0, len(records))
	for _, rec := range records {
		if rec.User.ID == "" || seen[rec.User.ID] {
			continue
		}
		seen[rec.User.ID] = true
		users = append(users, rec.User)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].displayName()) < strings.ToLower(users[j].displayName())
	})
	return users
}
