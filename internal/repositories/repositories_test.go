package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// steppedClock returns a clock that advances one second per call.
func steppedClock() func() time.Time {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestRepo(t *testing.T) (*SessionRepository, *sql.DB) {
	t.Helper()
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	repo.now = steppedClock()
	return repo, db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "sessions")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	t.Run("UnknownTable", func(t *testing.T) {
		if _, err := NextSequence(db, "nope"); err == nil {
			t.Error("expected error for missing sequence table")
		}
	})
}

func TestSessionRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo, db := newTestRepo(t)
		defer db.Close()

		session := models.NewSession("Landscapes", []string{"r/EarthPorn", "earthporn", " pics "})
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if session.ID == "" {
			t.Error("session ID should be set after creation")
		}
		if session.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", session.Sequence)
		}
		if len(session.Channels) != 2 || session.Channels[0] != "EarthPorn" || session.Channels[1] != "pics" {
			t.Errorf("expected normalized channels, got %v", session.Channels)
		}
		if session.CreatedAt.IsZero() || !session.CreatedAt.Equal(session.UpdatedAt) {
			t.Errorf("expected matching timestamps, got %v / %v", session.CreatedAt, session.UpdatedAt)
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo, db := newTestRepo(t)
		defer db.Close()

		session := models.NewSession("Cats", []string{"aww", "cats"})
		session.Interval = 15
		session.Transition = models.TransitionZoom
		session.IsPublic = true
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		retrieved, err := repo.Get(session.ID)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}

		if retrieved.Title != "Cats" {
			t.Errorf("expected title Cats, got %s", retrieved.Title)
		}
		if len(retrieved.Channels) != 2 || retrieved.Channels[1] != "cats" {
			t.Errorf("expected channels to round trip, got %v", retrieved.Channels)
		}
		if retrieved.Interval != 15 || retrieved.Transition != models.TransitionZoom {
			t.Errorf("expected interval 15 zoom, got %d %s", retrieved.Interval, retrieved.Transition)
		}
		if !retrieved.IsPublic || retrieved.IsFavorite {
			t.Errorf("expected public non-favorite session, got %+v", retrieved)
		}
		if retrieved.CaptionPrompt != models.DefaultCaptionPrompt {
			t.Errorf("expected default caption prompt, got %q", retrieved.CaptionPrompt)
		}
		if !retrieved.UpdatedAt.Equal(session.UpdatedAt) {
			t.Errorf("expected updated_at %v, got %v", session.UpdatedAt, retrieved.UpdatedAt)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo, db := newTestRepo(t)
		defer db.Close()

		titles := []string{"first", "second", "third"}
		ids := make([]string, len(titles))
		for i, title := range titles {
			s := models.NewSession(title, []string{"pics"})
			if err := repo.Create(s); err != nil {
				t.Fatalf("failed to create session: %v", err)
			}
			ids[i] = s.ID
		}

		sessions, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(sessions) != 3 {
			t.Fatalf("expected 3 sessions, got %d", len(sessions))
		}
		if sessions[0].Title != "third" || sessions[2].Title != "first" {
			t.Errorf("expected most recent first, got %s, %s, %s", sessions[0].Title, sessions[1].Title, sessions[2].Title)
		}

		title := "first again"
		if _, err := repo.Update(ids[0], models.SessionPatch{Title: &title}); err != nil {
			t.Fatalf("failed to update session: %v", err)
		}

		sessions, err = repo.List()
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if sessions[0].ID != ids[0] {
			t.Errorf("expected updated session first, got %s", sessions[0].Title)
		}
	})

	t.Run("ListBy", func(t *testing.T) {
		repo, db := newTestRepo(t)
		defer db.Close()

		a := models.NewSession("a", []string{"pics"})
		a.IsFavorite = true
		a.UserID = "user-1"
		b := models.NewSession("b", []string{"pics"})
		b.IsPublic = true
		for _, s := range []*models.Session{a, b} {
			if err := repo.Create(s); err != nil {
				t.Fatalf("failed to create session: %v", err)
			}
		}

		tests := []struct {
			name     string
			criteria map[string]any
			want     []string
		}{
			{name: "favorites", criteria: map[string]any{"favorite": true}, want: []string{"a"}},
			{name: "public", criteria: map[string]any{"public": true}, want: []string{"b"}},
			{name: "user", criteria: map[string]any{"user_id": "user-1"}, want: []string{"a"}},
			{name: "none match", criteria: map[string]any{"user_id": "other"}, want: []string{}},
			{name: "empty criteria", criteria: map[string]any{}, want: []string{"b", "a"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				sessions, err := repo.ListBy(tt.criteria)
				if err != nil {
					t.Fatalf("ListBy failed: %v", err)
				}
				if len(sessions) != len(tt.want) {
					t.Fatalf("expected %d sessions, got %d", len(tt.want), len(sessions))
				}
				for i, title := range tt.want {
					if sessions[i].Title != title {
						t.Errorf("expected %s at %d, got %s", title, i, sessions[i].Title)
					}
				}
			})
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo, db := newTestRepo(t)
		defer db.Close()

		session := models.NewSession("Original", []string{"pics"})
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		title := "Renamed"
		interval := 30
		public := true
		updated, err := repo.Update(session.ID, models.SessionPatch{
			Title:    &title,
			Interval: &interval,
			IsPublic: &public,
			Channels: []string{"r/aww", "AWW", "cats"},
		})
		if err != nil {
			t.Fatalf("failed to update session: %v", err)
		}

		if updated.Title != "Renamed" || updated.Interval != 30 || !updated.IsPublic {
			t.Errorf("patch not applied: %+v", updated)
		}
		if len(updated.Channels) != 2 || updated.Channels[0] != "aww" {
			t.Errorf("expected normalized channels, got %v", updated.Channels)
		}
		if !updated.UpdatedAt.After(session.UpdatedAt) {
			t.Errorf("expected updated_at to advance")
		}

		stored, err := repo.Get(session.ID)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if stored.Title != "Renamed" || stored.Transition != models.TransitionFade {
			t.Errorf("expected stored patch with untouched transition, got %+v", stored)
		}
	})

	t.Run("EmptyPatch", func(t *testing.T) {
		repo, db := newTestRepo(t)
		defer db.Close()

		session := models.NewSession("Same", []string{"pics"})
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := repo.Update(session.ID, models.SessionPatch{})
		if err != nil {
			t.Fatalf("failed to update session: %v", err)
		}
		if !got.UpdatedAt.Equal(session.UpdatedAt) {
			t.Error("empty patch should not touch updated_at")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo, db := newTestRepo(t)
		defer db.Close()

		session := models.NewSession("Doomed", []string{"pics"})
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		deleted, err := repo.Delete(session.ID)
		if err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}
		if !deleted {
			t.Error("expected delete to report true")
		}

		if _, err := repo.Get(session.ID); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
		}

		sessions, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(sessions) != 0 {
			t.Errorf("expected deleted session to be hidden, got %d", len(sessions))
		}

		var deletedAt sql.NullTime
		if err := db.QueryRow("SELECT deleted_at FROM sessions WHERE id = ?", session.ID).Scan(&deletedAt); err != nil {
			t.Fatalf("failed to read deleted_at: %v", err)
		}
		if !deletedAt.Valid {
			t.Error("expected soft delete to keep the row with deleted_at set")
		}

		again, err := repo.Delete(session.ID)
		if err != nil {
			t.Fatalf("failed to delete session twice: %v", err)
		}
		if again {
			t.Error("second delete should report false")
		}
	})

	t.Run("SetFavorite", func(t *testing.T) {
		repo, db := newTestRepo(t)
		defer db.Close()

		session := models.NewSession("Star", []string{"pics"})
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		ok, err := repo.SetFavorite(session.ID, true)
		if err != nil || !ok {
			t.Fatalf("expected favorite to be set, got %v %v", ok, err)
		}

		stored, _ := repo.Get(session.ID)
		if !stored.IsFavorite {
			t.Error("expected session to be favorite")
		}

		ok, err = repo.SetFavorite("missing", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected false for missing session")
		}
	})

	t.Run("Import", func(t *testing.T) {
		repo, db := newTestRepo(t)
		defer db.Close()

		sessions := []*models.Session{
			models.NewSession("one", []string{"pics"}),
			models.NewSession("two", []string{"aww"}),
		}
		if err := repo.Import(sessions); err != nil {
			t.Fatalf("failed to import sessions: %v", err)
		}

		if sessions[0].ID == "" || sessions[1].Sequence != 2 {
			t.Errorf("expected IDs and sequences to be assigned, got %+v %+v", sessions[0], sessions[1])
		}

		list, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("expected 2 sessions, got %d", len(list))
		}

		next, err := NextSequence(db, "sessions")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if next != 3 {
			t.Errorf("expected next sequence 3 after import, got %d", next)
		}
	})
}

func TestCredentialRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewCredentialRepository(db)

	t.Run("Missing", func(t *testing.T) {
		value, ok, err := repo.Get("reddit_access_token")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok || value != "" {
			t.Errorf("expected missing key, got %q %v", value, ok)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		if err := repo.Set("reddit_access_token", "abc"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := repo.Set("reddit_access_token", "def"); err != nil {
			t.Fatalf("Set overwrite failed: %v", err)
		}

		value, ok, err := repo.Get("reddit_access_token")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !ok || value != "def" {
			t.Errorf("expected def, got %q %v", value, ok)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := repo.Remove("reddit_access_token"); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if err := repo.Remove("reddit_access_token"); err != nil {
			t.Fatalf("Remove should be idempotent: %v", err)
		}
		if _, ok, _ := repo.Get("reddit_access_token"); ok {
			t.Error("expected key to be removed")
		}
	})
}
