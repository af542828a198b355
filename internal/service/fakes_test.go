package service

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/dispatch"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/rating"
	"github.com/sakif/authors-haven/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore is an in-memory implementation of every repository interface.
// It follows the same contracts as sqlite.DB (not found, conflicts,
// cascades) closely enough for service tests, without SQL.

type pair [2]int64

type fakeStore struct {
	mu sync.Mutex

	users    map[int64]*model.User
	follows  map[pair]time.Time // follower, followed
	tags     map[int64]*model.Tag
	articles map[int64]*model.Article
	ratings  map[pair]int  // article, user
	claps    map[pair]bool // article, user
	marks    map[pair]bool // user, article
	comments map[int64]*model.Comment
	likes    map[pair]bool // comment, user
	edits    []model.CommentEdit
	reports  []model.Report
	notes    []model.Notification
	nextID   int64

	// existsCalls counts UsernameExists lookups.
	existsCalls int
	// createUserCalls counts successful CreateUser inserts.
	createUserCalls int
	// failNotes makes CreateNotification fail.
	failNotes bool
}

var (
	_ repository.UserRepository         = (*fakeStore)(nil)
	_ repository.FollowRepository       = (*fakeStore)(nil)
	_ repository.TagRepository          = (*fakeStore)(nil)
	_ repository.ArticleRepository      = (*fakeStore)(nil)
	_ repository.CommentRepository      = (*fakeStore)(nil)
	_ repository.ReportRepository       = (*fakeStore)(nil)
	_ repository.NotificationRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	s := &fakeStore{
		users:    make(map[int64]*model.User),
		follows:  make(map[pair]time.Time),
		tags:     make(map[int64]*model.Tag),
		articles: make(map[int64]*model.Article),
		ratings:  make(map[pair]int),
		claps:    make(map[pair]bool),
		marks:    make(map[pair]bool),
		comments: make(map[int64]*model.Comment),
		likes:    make(map[pair]bool),
	}
	for i, name := range []string{"Food", "Technology", "Art", "Finance", "Health"} {
		id := int64(i + 1)
		s.tags[id] = &model.Tag{ID: id, Name: name}
	}
	return s
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// ---- users ----------------------------------------------------------------

func (s *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperror.FieldConflict("email", "email already exists.")
		}
		if existing.Username == u.Username {
			return apperror.FieldConflict("username", "username already exists.")
		}
	}
	u.ID = s.id()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	s.users[u.ID] = &stored
	s.createUserCalls++
	return nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", itoa(id))
	}
	out := *u
	return &out, nil
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (s *fakeStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (s *fakeStore) UsernameExists(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsCalls++
	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) updateUser(id int64, fn func(u *model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperror.NotFound("user", itoa(id))
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakeStore) UpdateUserProfile(_ context.Context, in *model.User) error {
	return s.updateUser(in.ID, func(u *model.User) {
		u.FirstName, u.LastName, u.Bio, u.Image = in.FirstName, in.LastName, in.Bio, in.Image
	})
}

func (s *fakeStore) ActivateUser(_ context.Context, id int64) error {
	return s.updateUser(id, func(u *model.User) { u.Active = true })
}

func (s *fakeStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	return s.updateUser(id, func(u *model.User) { u.Password = hash })
}

func (s *fakeStore) UpdateNotificationSettings(_ context.Context, id int64, email, inApp bool) error {
	return s.updateUser(id, func(u *model.User) {
		u.EmailNotification, u.InAppNotification = email, inApp
	})
}

// ---- follows --------------------------------------------------------------

func (s *fakeStore) Follow(_ context.Context, followerID, followedID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[followedID]; !ok {
		return apperror.NotFound("user", itoa(followedID))
	}
	k := pair{followerID, followedID}
	if _, ok := s.follows[k]; ok {
		return apperror.Conflict("follow", itoa(followedID))
	}
	s.follows[k] = time.Now()
	return nil
}

func (s *fakeStore) Unfollow(_ context.Context, followerID, followedID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{followerID, followedID}
	if _, ok := s.follows[k]; !ok {
		return apperror.NotFound("follow", itoa(followedID))
	}
	delete(s.follows, k)
	return nil
}

func (s *fakeStore) IsFollowing(_ context.Context, followerID, followedID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.follows[pair{followerID, followedID}]
	return ok, nil
}

func (s *fakeStore) listFollow(match func(k pair) (int64, bool)) []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0)
	for k := range s.follows {
		if id, ok := match(k); ok {
			out = append(out, *s.users[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) ListFollowers(_ context.Context, userID int64) ([]model.User, error) {
	return s.listFollow(func(k pair) (int64, bool) { return k[0], k[1] == userID }), nil
}

func (s *fakeStore) ListFollowing(_ context.Context, userID int64) ([]model.User, error) {
	return s.listFollow(func(k pair) (int64, bool) { return k[1], k[0] == userID }), nil
}

// ---- tags -----------------------------------------------------------------

func (s *fakeStore) ListTags(_ context.Context) ([]model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetTagByID(_ context.Context, id int64) (*model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id]
	if !ok {
		return nil, apperror.NotFound("tag", itoa(id))
	}
	out := *t
	return &out, nil
}

func (s *fakeStore) DeleteTag(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[id]; !ok {
		return apperror.NotFound("tag", itoa(id))
	}
	delete(s.tags, id)
	for aid, a := range s.articles {
		if a.TagID != nil && *a.TagID == id {
			delete(s.articles, aid)
		}
	}
	return nil
}

// ---- articles -------------------------------------------------------------

func (s *fakeStore) withAuthor(a *model.Article) *model.Article {
	out := *a
	if u, ok := s.users[a.UserID]; ok {
		p := model.ProfileOf(u)
		out.Author = &p
	}
	return &out
}

func (s *fakeStore) CreateArticle(_ context.Context, a *model.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	a.Slug = slug.Make(a.Title) + "-" + itoa(a.ID)
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	stored := *a
	s.articles[a.ID] = &stored
	return nil
}

func (s *fakeStore) GetArticleByID(_ context.Context, id int64) (*model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, apperror.NotFound("article", itoa(id))
	}
	return s.withAuthor(a), nil
}

func (s *fakeStore) GetArticleBySlug(_ context.Context, sl string) (*model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.articles {
		if a.Slug == sl {
			return s.withAuthor(a), nil
		}
	}
	return nil, apperror.NotFound("article", sl)
}

func (s *fakeStore) ListArticles(_ context.Context, f repository.ArticleFilter) ([]model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Article, 0)
	for _, a := range s.articles {
		if f.TagID > 0 && (a.TagID == nil || *a.TagID != f.TagID) {
			continue
		}
		if f.AuthorID > 0 && a.UserID != f.AuthorID {
			continue
		}
		out = append(out, *s.withAuthor(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Offset >= len(out) {
		return []model.Article{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *fakeStore) UpdateArticle(_ context.Context, a *model.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[a.ID]; !ok {
		return apperror.NotFound("article", itoa(a.ID))
	}
	a.Slug = slug.Make(a.Title) + "-" + itoa(a.ID)
	a.UpdatedAt = time.Now().UTC()
	stored := *a
	stored.Author = nil
	s.articles[a.ID] = &stored
	return nil
}

func (s *fakeStore) DeleteArticle(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[id]; !ok {
		return apperror.NotFound("article", itoa(id))
	}
	delete(s.articles, id)
	return nil
}

func (s *fakeStore) RateArticle(_ context.Context, articleID, userID int64, value int) (*model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[articleID]
	if !ok {
		return nil, apperror.NotFound("article", itoa(articleID))
	}
	k := pair{articleID, userID}
	if _, ok := s.ratings[k]; ok {
		return nil, apperror.New(apperror.ErrConflict, "you have already rated this article")
	}
	next, err := rating.Update(a.RatingCount, a.Rating, float64(value))
	if err != nil {
		return nil, err
	}
	s.ratings[k] = value
	a.Rating = next
	a.RatingCount++
	return s.withAuthor(a), nil
}

func (s *fakeStore) ClapArticle(_ context.Context, articleID, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[articleID]
	if !ok {
		return 0, apperror.NotFound("article", itoa(articleID))
	}
	k := pair{articleID, userID}
	if s.claps[k] {
		return 0, apperror.New(apperror.ErrConflict, "you have already clapped for this article")
	}
	s.claps[k] = true
	a.TotalClaps++
	return a.TotalClaps, nil
}

func (s *fakeStore) AddBookmark(_ context.Context, userID, articleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{userID, articleID}
	if s.marks[k] {
		return apperror.New(apperror.ErrConflict, "article is already bookmarked")
	}
	s.marks[k] = true
	return nil
}

func (s *fakeStore) RemoveBookmark(_ context.Context, userID, articleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{userID, articleID}
	if !s.marks[k] {
		return apperror.NotFound("bookmark", itoa(articleID))
	}
	delete(s.marks, k)
	return nil
}

func (s *fakeStore) ListBookmarks(_ context.Context, userID int64) ([]model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Article, 0)
	for k := range s.marks {
		if a, ok := s.articles[k[1]]; ok && k[0] == userID {
			out = append(out, *s.withAuthor(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListBookmarkers(_ context.Context, articleID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0)
	for k := range s.marks {
		if k[1] == articleID {
			out = append(out, k[0])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ---- comments -------------------------------------------------------------

func (s *fakeStore) CreateComment(_ context.Context, c *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[c.ArticleID]; !ok {
		return apperror.NotFound("article", itoa(c.ArticleID))
	}
	c.ID = s.id()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	stored := *c
	s.comments[c.ID] = &stored
	return nil
}

func (s *fakeStore) GetCommentByID(_ context.Context, id int64) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", itoa(id))
	}
	out := *c
	return &out, nil
}

func (s *fakeStore) ListComments(_ context.Context, articleID int64) ([]model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Comment, 0)
	for _, c := range s.comments {
		if c.ArticleID == articleID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) UpdateComment(_ context.Context, id int64, text string) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", itoa(id))
	}
	s.edits = append(s.edits, model.CommentEdit{ID: s.id(), CommentID: id, Comment: c.Comment, EditedAt: time.Now().UTC()})
	c.Comment = text
	out := *c
	return &out, nil
}

func (s *fakeStore) DeleteComment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return apperror.NotFound("comment", itoa(id))
	}
	delete(s.comments, id)
	return nil
}

func (s *fakeStore) LikeComment(_ context.Context, commentID, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return 0, apperror.NotFound("comment", itoa(commentID))
	}
	k := pair{commentID, userID}
	if s.likes[k] {
		return 0, apperror.New(apperror.ErrConflict, "you have already liked this comment")
	}
	s.likes[k] = true
	c.TotalLikes++
	return c.TotalLikes, nil
}

func (s *fakeStore) ListCommentEdits(_ context.Context, commentID int64) ([]model.CommentEdit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CommentEdit, 0)
	for _, e := range s.edits {
		if e.CommentID == commentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ---- reports and notifications --------------------------------------------

func (s *fakeStore) CreateReport(_ context.Context, r *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	r.CreatedAt = time.Now().UTC()
	s.reports = append(s.reports, *r)
	return nil
}

func (s *fakeStore) ListReports(_ context.Context, opts repository.ListOptions) ([]model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]model.Report(nil), s.reports...)
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *fakeStore) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNotes {
		return apperror.New(apperror.ErrConflict, "notification store unavailable")
	}
	n.ID = s.id()
	n.CreatedAt = time.Now().UTC()
	s.notes = append(s.notes, *n)
	return nil
}

func (s *fakeStore) ListNotifications(_ context.Context, userID int64) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, 0)
	for _, n := range s.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkNotificationRead(_ context.Context, id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID == id && s.notes[i].UserID == userID {
			s.notes[i].IsRead = true
			return nil
		}
	}
	return apperror.NotFound("notification", itoa(id))
}

// seedUser inserts a user directly and returns it.
func (s *fakeStore) seedAdmin(username string) *model.User {
	u := &model.User{
		Email:    username + "@example.com",
		Username: username,
		Role:     model.RoleAdmin,
		Active:   true,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (s *fakeStore) seedUser(username string, active bool) *model.User {
	u := &model.User{
		Email:             username + "@example.com",
		Username:          username,
		Active:            active,
		EmailNotification: true,
		InAppNotification: true,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

// =========================================================================
// FAKE DISPATCHER AND NOTIFIER
// =========================================================================

type fakeDispatcher struct {
	mu     sync.Mutex
	emails []dispatch.Email
	pushes []string // "channel/event"
}

func (d *fakeDispatcher) SendEmail(e dispatch.Email) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, e)
}

func (d *fakeDispatcher) Push(channel, event string, _ any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushes = append(d.pushes, channel+"/"+event)
}

func (d *fakeDispatcher) emailsTo(addr string) []dispatch.Email {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dispatch.Email
	for _, e := range d.emails {
		if e.To == addr {
			out = append(out, e)
		}
	}
	return out
}

// recordingNotifier captures Notifier calls as short strings.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) record(s string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, s)
}

func (n *recordingNotifier) ArticlePublished(_ context.Context, author *model.User, a *model.Article) {
	n.record("article:" + author.Username + ":" + a.Slug)
}

func (n *recordingNotifier) CommentPosted(_ context.Context, actor *model.User, a *model.Article, _ *model.Comment) {
	n.record("comment:" + actor.Username + ":" + a.Slug)
}

func (n *recordingNotifier) Followed(_ context.Context, follower, followed *model.User) {
	n.record("follow:" + follower.Username + ":" + followed.Username)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
