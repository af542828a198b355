package sqlite

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

// =========================================================================
// CREATE / GET TESTS
// =========================================================================

func TestCreateArticle_Slug(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "writer")

	first := createTestArticle(t, db, author, "Hello, World!")
	second := createTestArticle(t, db, author, "Hello, World!")

	if first.Slug != "hello-world-"+strconv.FormatInt(first.ID, 10) {
		t.Errorf("Slug = %q", first.Slug)
	}
	if first.Slug == second.Slug {
		t.Errorf("identical titles produced identical slugs %q", first.Slug)
	}

	got, err := db.GetArticleBySlug(context.Background(), first.Slug)
	if err != nil {
		t.Fatalf("GetArticleBySlug() error = %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("GetArticleBySlug() ID = %d, want %d", got.ID, first.ID)
	}
	if got.Author == nil || got.Author.Username != "writer" {
		t.Errorf("Author = %+v, want writer", got.Author)
	}
}

func TestCreateArticle_SymbolTitle(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "writer")

	a := createTestArticle(t, db, author, "!!!")
	if !strings.HasPrefix(a.Slug, "article-") {
		t.Errorf("Slug = %q, want article-<id>", a.Slug)
	}
}

func TestCreateArticle_UnknownTag(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "writer")

	tagID := int64(999)
	err := db.CreateArticle(context.Background(), &model.Article{UserID: author.ID, TagID: &tagID, Title: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CreateArticle() error = %v, want ErrNotFound", err)
	}
	if got := countRows(t, db, "articles"); got != 0 {
		t.Errorf("articles = %d after failed insert, want 0", got)
	}
}

func TestGetArticle_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetArticleByID(context.Background(), 1); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetArticleByID() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetArticleBySlug(context.Background(), "nope-1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetArticleBySlug() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST / UPDATE / DELETE TESTS
// =========================================================================

func TestListArticles_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	createTestArticle(t, db, alice, "one")
	createTestArticle(t, db, alice, "two")
	b := createTestArticle(t, db, bob, "three")

	art := int64(3)
	b.TagID = &art
	if err := db.UpdateArticle(ctx, b); err != nil {
		t.Fatalf("UpdateArticle() error = %v", err)
	}

	tests := []struct {
		name   string
		filter repository.ArticleFilter
		want   int
	}{
		{"all", repository.ArticleFilter{}, 3},
		{"by author", repository.ArticleFilter{AuthorID: alice.ID}, 2},
		{"by tag", repository.ArticleFilter{TagID: 3}, 1},
		{"by tag and author", repository.ArticleFilter{TagID: 3, AuthorID: alice.ID}, 0},
		{"paged", repository.ArticleFilter{ListOptions: repository.ListOptions{Limit: 2}}, 2},
		{"offset past end", repository.ArticleFilter{ListOptions: repository.ListOptions{Offset: 10}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListArticles(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListArticles() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestUpdateArticle_SlugFollowsTitle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestArticle(t, db, createTestUser(t, db, "writer"), "Old Title")

	a.Title = "New Title"
	a.Body = "changed"
	if err := db.UpdateArticle(ctx, a); err != nil {
		t.Fatalf("UpdateArticle() error = %v", err)
	}

	got, err := db.GetArticleByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetArticleByID() error = %v", err)
	}
	if got.Slug != "new-title-"+strconv.FormatInt(a.ID, 10) {
		t.Errorf("Slug = %q", got.Slug)
	}
	if got.Body != "changed" {
		t.Errorf("Body = %q, want changed", got.Body)
	}
}

func TestUpdateArticle_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.UpdateArticle(context.Background(), &model.Article{ID: 77, Title: "ghost"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateArticle() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteArticle_Cascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "writer")
	reader := createTestUser(t, db, "reader")
	a := createTestArticle(t, db, author, "doomed")

	if _, err := db.RateArticle(ctx, a.ID, reader.ID, 4); err != nil {
		t.Fatalf("RateArticle() error = %v", err)
	}
	if _, err := db.ClapArticle(ctx, a.ID, reader.ID); err != nil {
		t.Fatalf("ClapArticle() error = %v", err)
	}
	if err := db.AddBookmark(ctx, reader.ID, a.ID); err != nil {
		t.Fatalf("AddBookmark() error = %v", err)
	}
	c := &model.Comment{ArticleID: a.ID, UserID: reader.ID, Comment: "nice"}
	if err := db.CreateComment(ctx, c); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	if err := db.CreateReport(ctx, &model.Report{ArticleID: a.ID, UserID: reader.ID, Reason: "spam"}); err != nil {
		t.Fatalf("CreateReport() error = %v", err)
	}

	if err := db.DeleteArticle(ctx, a.ID); err != nil {
		t.Fatalf("DeleteArticle() error = %v", err)
	}
	for _, table := range []string{"articles", "ratings", "claps", "bookmarks", "comments", "reports"} {
		if got := countRows(t, db, table); got != 0 {
			t.Errorf("%s rows = %d after delete, want 0", table, got)
		}
	}

	if err := db.DeleteArticle(ctx, a.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteArticle() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// RATING TESTS
// =========================================================================

func TestRateArticle_RunningAverage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestArticle(t, db, createTestUser(t, db, "writer"), "rated")

	values := []int{5, 3, 4, 1}
	var sum float64
	for i, v := range values {
		rater := createTestUser(t, db, "rater"+strconv.Itoa(i))
		got, err := db.RateArticle(ctx, a.ID, rater.ID, v)
		if err != nil {
			t.Fatalf("RateArticle(%d) error = %v", v, err)
		}
		sum += float64(v)
		mean := sum / float64(i+1)
		if math.Abs(got.Rating-mean) > 1e-9 {
			t.Errorf("after %d ratings Rating = %v, want %v", i+1, got.Rating, mean)
		}
		if got.RatingCount != int64(i+1) {
			t.Errorf("RatingCount = %d, want %d", got.RatingCount, i+1)
		}
	}
}

func TestRateArticle_Concurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestArticle(t, db, createTestUser(t, db, "writer"), "popular")

	const raters = 20
	users := make([]*model.User, raters)
	for i := range users {
		users[i] = createTestUser(t, db, "rater"+strconv.Itoa(i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, raters)
	var sum float64
	for i, u := range users {
		value := 1 + i%5
		sum += float64(value)
		wg.Add(1)
		go func(userID int64, value int) {
			defer wg.Done()
			if _, err := db.RateArticle(ctx, a.ID, userID, value); err != nil {
				errs <- err
			}
		}(u.ID, value)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("RateArticle() error = %v", err)
	}

	got, err := db.GetArticleByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetArticleByID() error = %v", err)
	}
	if got.RatingCount != raters {
		t.Errorf("RatingCount = %d, want %d", got.RatingCount, raters)
	}
	if mean := sum / raters; math.Abs(got.Rating-mean) > 1e-9 {
		t.Errorf("Rating = %v, want %v", got.Rating, mean)
	}

	var rows int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ratings WHERE article_id = ?`, a.ID,
	).Scan(&rows); err != nil {
		t.Fatalf("counting ratings: %v", err)
	}
	if rows != raters {
		t.Errorf("rating rows = %d, want %d", rows, raters)
	}
}

func TestRateArticle_Twice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestArticle(t, db, createTestUser(t, db, "writer"), "rated")
	rater := createTestUser(t, db, "rater")

	if _, err := db.RateArticle(ctx, a.ID, rater.ID, 5); err != nil {
		t.Fatalf("RateArticle() error = %v", err)
	}
	_, err := db.RateArticle(ctx, a.ID, rater.ID, 1)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second RateArticle() error = %v, want ErrConflict", err)
	}

	// The rejected rating must not leak into the average.
	got, err := db.GetArticleByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetArticleByID() error = %v", err)
	}
	if got.Rating != 5 || got.RatingCount != 1 {
		t.Errorf("Rating = %v (%d), want 5 (1)", got.Rating, got.RatingCount)
	}
}

func TestRateArticle_Errors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestArticle(t, db, createTestUser(t, db, "writer"), "rated")
	rater := createTestUser(t, db, "rater")

	if _, err := db.RateArticle(ctx, 999, rater.ID, 3); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("RateArticle(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := db.RateArticle(ctx, a.ID, rater.ID, 9); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("RateArticle(9) error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// CLAP / BOOKMARK TESTS
// =========================================================================

func TestClapArticle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestArticle(t, db, createTestUser(t, db, "writer"), "clappable")
	r1 := createTestUser(t, db, "r1")
	r2 := createTestUser(t, db, "r2")

	if total, err := db.ClapArticle(ctx, a.ID, r1.ID); err != nil || total != 1 {
		t.Fatalf("ClapArticle() = %d, %v; want 1", total, err)
	}
	if total, err := db.ClapArticle(ctx, a.ID, r2.ID); err != nil || total != 2 {
		t.Fatalf("ClapArticle() = %d, %v; want 2", total, err)
	}
	if _, err := db.ClapArticle(ctx, a.ID, r1.ID); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("repeat ClapArticle() error = %v, want ErrConflict", err)
	}
	if _, err := db.ClapArticle(ctx, 999, r1.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ClapArticle(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestBookmarks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "writer")
	reader := createTestUser(t, db, "reader")
	a := createTestArticle(t, db, author, "keep me")
	b := createTestArticle(t, db, author, "me too")

	for _, id := range []int64{a.ID, b.ID} {
		if err := db.AddBookmark(ctx, reader.ID, id); err != nil {
			t.Fatalf("AddBookmark(%d) error = %v", id, err)
		}
	}
	if err := db.AddBookmark(ctx, reader.ID, a.ID); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("repeat AddBookmark() error = %v, want ErrConflict", err)
	}
	if err := db.AddBookmark(ctx, reader.ID, 999); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("AddBookmark(unknown) error = %v, want ErrNotFound", err)
	}

	list, err := db.ListBookmarks(ctx, reader.ID)
	if err != nil {
		t.Fatalf("ListBookmarks() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(bookmarks) = %d, want 2", len(list))
	}

	ids, err := db.ListBookmarkers(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListBookmarkers() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != reader.ID {
		t.Errorf("ListBookmarkers() = %v, want [%d]", ids, reader.ID)
	}

	if err := db.RemoveBookmark(ctx, reader.ID, a.ID); err != nil {
		t.Fatalf("RemoveBookmark() error = %v", err)
	}
	if err := db.RemoveBookmark(ctx, reader.ID, a.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("repeat RemoveBookmark() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// TAG TESTS
// =========================================================================

func TestDeleteTag_CascadesArticles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "writer")
	createTestArticle(t, db, author, "tagged")

	if err := db.DeleteTag(ctx, 1); err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}
	if got := countRows(t, db, "articles"); got != 0 {
		t.Errorf("articles = %d after tag delete, want 0", got)
	}
	if _, err := db.GetTagByID(ctx, 1); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetTagByID() error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteTag(ctx, 1); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("repeat DeleteTag() error = %v, want ErrNotFound", err)
	}
}

func TestGetTagByID(t *testing.T) {
	db := newTestDB(t)
	tag, err := db.GetTagByID(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetTagByID() error = %v", err)
	}
	if tag.Name != "Technology" {
		t.Errorf("Name = %q, want Technology", tag.Name)
	}
}
