package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/board"
	boardPostgres "github.com/frahmantamala/church-cms/internal/board/postgres"
	boardDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/board"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestBoardPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Board Postgres Suite")
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

var _ = Describe("Board PostgreSQL Repository", func() {
	var (
		ctx  context.Context
		db   *gorm.DB
		repo board.RepositoryAPI
	)

	seed := func(posts ...*boardDatamodel.Post) {
		for _, p := range posts {
			if p.Status == "" {
				p.Status = board.StatusPublished
			}
			if p.UserID == "" {
				p.UserID = "author-1"
			}
			Expect(db.Create(p).Error).To(Succeed())
		}
	}

	ids := func(posts []*boardDatamodel.Post) []string {
		out := make([]string, 0, len(posts))
		for _, p := range posts {
			out = append(out, p.ID)
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&boardDatamodel.Post{}, &boardDatamodel.Comment{}, &boardDatamodel.Like{})).To(Succeed())

		policy := retry.NewPolicy(internal.PersistenceConfig{
			MaxAttempts:    1,
			BaseDelay:      time.Millisecond,
			AttemptTimeout: time.Second,
		}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		repo = boardPostgres.NewBoardRepository(db, policy)

		seed(
			&boardDatamodel.Post{ID: "p-old", Title: "Old", PageID: strPtr("news"), PublishedAt: timePtr(base.Add(-48 * time.Hour)), CreatedAt: base.Add(-72 * time.Hour)},
			// no published_at: sorts by created_at
			&boardDatamodel.Post{ID: "p-mid", Title: "Mid", PageID: strPtr("news"), CreatedAt: base.Add(-24 * time.Hour)},
			&boardDatamodel.Post{ID: "p-tie-b", Title: "Tie B", PageID: strPtr("news"), PublishedAt: timePtr(base), CreatedAt: base, Thumbnail: strPtr("/files/b.jpg")},
			&boardDatamodel.Post{ID: "p-tie-a", Title: "Tie A", PageID: strPtr("news"), PublishedAt: timePtr(base), CreatedAt: base},
			&boardDatamodel.Post{ID: "p-new", Title: "New", PageID: strPtr("news"), PublishedAt: timePtr(base.Add(time.Hour)), CreatedAt: base, Thumbnail: strPtr("")},
			&boardDatamodel.Post{ID: "p-draft", Title: "Draft", PageID: strPtr("news"), Status: board.StatusDraft, CreatedAt: base.Add(2 * time.Hour)},
			&boardDatamodel.Post{ID: "p-other", Title: "Other page", PageID: strPtr("events"), PublishedAt: timePtr(base), CreatedAt: base},
		)
	})

	Describe("ListPublished", func() {
		It("orders newest first and breaks ties by id", func() {
			posts, err := repo.ListPublished(ctx, "news", 20, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(posts)).To(Equal([]string{"p-new", "p-tie-a", "p-tie-b", "p-mid", "p-old"}))
		})

		It("honours the limit", func() {
			posts, err := repo.ListPublished(ctx, "news", 2, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(posts)).To(Equal([]string{"p-new", "p-tie-a"}))
		})

		It("keeps only posts with a thumbnail for galleries", func() {
			posts, err := repo.ListPublished(ctx, "news", 20, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(posts)).To(Equal([]string{"p-tie-b"}))
		})
	})

	Describe("Neighbours", func() {
		neighbours := func(id string) (string, string) {
			post, err := repo.GetByID(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			older, newer, err := repo.Neighbours(ctx, post)
			Expect(err).NotTo(HaveOccurred())
			var o, n string
			if older != nil {
				o = older.ID
			}
			if newer != nil {
				n = newer.ID
			}
			return o, n
		}

		It("agrees with the list order across timestamp ties", func() {
			list, err := repo.ListPublished(ctx, "news", 20, false)
			Expect(err).NotTo(HaveOccurred())
			order := ids(list)

			for i, id := range order {
				older, newer := neighbours(id)
				if i+1 < len(order) {
					Expect(older).To(Equal(order[i+1]), "older of %s", id)
				} else {
					Expect(older).To(BeEmpty())
				}
				if i > 0 {
					Expect(newer).To(Equal(order[i-1]), "newer of %s", id)
				} else {
					Expect(newer).To(BeEmpty())
				}
			}
		})

		It("ignores drafts and other pages", func() {
			older, newer := neighbours("p-new")
			Expect(older).To(Equal("p-tie-a"))
			Expect(newer).To(BeEmpty())
		})
	})

	Describe("counts", func() {
		It("counts likes and comments per post in one query each", func() {
			Expect(db.Create([]*boardDatamodel.Like{
				{PostID: "p-new", UserID: "u1"},
				{PostID: "p-new", UserID: "u2"},
				{PostID: "p-old", UserID: "u1"},
			}).Error).To(Succeed())
			Expect(db.Create([]*boardDatamodel.Comment{
				{ID: "c1", PostID: "p-new", UserID: "u1", Content: "amen"},
			}).Error).To(Succeed())

			likes, err := repo.CountLikes(ctx, []string{"p-new", "p-old", "p-mid"})
			Expect(err).NotTo(HaveOccurred())
			Expect(likes).To(Equal(map[string]int64{"p-new": 2, "p-old": 1}))

			comments, err := repo.CountComments(ctx, []string{"p-new", "p-old"})
			Expect(err).NotTo(HaveOccurred())
			Expect(comments).To(Equal(map[string]int64{"p-new": 1}))
		})

		It("returns an empty map for no ids", func() {
			likes, err := repo.CountLikes(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(likes).To(BeEmpty())
		})
	})

	Describe("writes", func() {
		It("increments views", func() {
			Expect(repo.IncrementViews(ctx, "p-old")).To(Succeed())
			Expect(repo.IncrementViews(ctx, "p-old")).To(Succeed())
			post, err := repo.GetByID(ctx, "p-old")
			Expect(err).NotTo(HaveOccurred())
			Expect(post.Views).To(Equal(2))
		})

		It("publishes a draft only once", func() {
			draft, err := repo.GetByID(ctx, "p-draft")
			Expect(err).NotTo(HaveOccurred())
			draft.Status = board.StatusPublished
			draft.PublishedAt = timePtr(base.Add(3 * time.Hour))
			draft.Content = "<p>moved</p>"

			ok, err := repo.Publish(ctx, draft)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = repo.Publish(ctx, draft)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			stored, err := repo.GetByID(ctx, "p-draft")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(board.StatusPublished))
			Expect(stored.Content).To(Equal("<p>moved</p>"))
		})

		It("returns nil for a missing post or comment", func() {
			post, err := repo.GetByID(ctx, "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(post).To(BeNil())

			comment, err := repo.GetComment(ctx, "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(comment).To(BeNil())
		})

		It("lists comments oldest first", func() {
			Expect(repo.CreateComment(ctx, &boardDatamodel.Comment{ID: "c2", PostID: "p-new", UserID: "u", Content: "second", CreatedAt: base.Add(time.Minute)})).To(Succeed())
			Expect(repo.CreateComment(ctx, &boardDatamodel.Comment{ID: "c1", PostID: "p-new", UserID: "u", Content: "first", CreatedAt: base})).To(Succeed())

			comments, err := repo.ListComments(ctx, "p-new")
			Expect(err).NotTo(HaveOccurred())
			Expect(comments).To(HaveLen(2))
			Expect(comments[0].ID).To(Equal("c1"))
		})
	})
})
