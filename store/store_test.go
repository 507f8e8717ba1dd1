package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"storefront/model"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// jsonArg matches a JSONB payload argument by decoded content.
type jsonArg struct{ want string }

func (a jsonArg) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	if !ok {
		return false
	}
	var got, want any
	if json.Unmarshal(b, &got) != nil || json.Unmarshal([]byte(a.want), &want) != nil {
		return false
	}
	gb, _ := json.Marshal(got)
	wb, _ := json.Marshal(want)
	return string(gb) == string(wb)
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{DB: db, TTL: time.Hour, now: func() time.Time { return fixedNow }}, mock
}

func TestGetUser_FoundAndMissing(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM session_users WHERE session_id = $1 AND expires_at > $2`)).
		WithArgs("s1", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"id":3,"username":"bob","role":"customer"}`)))

	u, err := s.GetUser(ctx, "s1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u.ID != 3 || u.Username != "bob" {
		t.Fatalf("unexpected user: %+v", u)
	}

	// no row -> ErrNotFound
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM session_users WHERE session_id = $1 AND expires_at > $2`)).
		WithArgs("s2", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	if _, err := s.GetUser(ctx, "s2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveCart_Upsert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO session_carts (session_id, payload, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (session_id)
		DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at
	`)).
		WithArgs("s1", jsonArg{`{"cart_id":"c1","total_items":2,"total_price":"30","items":[]}`}, fixedNow.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cart := &model.Cart{CartID: "c1", TotalItems: 2, TotalPrice: decimal.NewFromInt(30), Items: []model.CartItem{}}
	if err := s.SaveCart(context.Background(), "s1", cart); err != nil {
		t.Fatalf("SaveCart failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteCart(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM session_carts WHERE session_id = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.DeleteCart(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteCart failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveSearchHistory_ReplacesInTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM search_history WHERE session_id = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO search_history (session_id, position, query) VALUES ($1, $2, $3)`)).
		WithArgs("s1", 0, "laptop").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO search_history (session_id, position, query) VALUES ($1, $2, $3)`)).
		WithArgs("s1", 1, "camera").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.SaveSearchHistory(context.Background(), "s1", []string{"laptop", "camera"}); err != nil {
		t.Fatalf("SaveSearchHistory failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveSearchHistory_RollsBackOnInsertError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM search_history WHERE session_id = $1`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO search_history (session_id, position, query) VALUES ($1, $2, $3)`)).
		WithArgs("s1", 0, "laptop").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := s.SaveSearchHistory(context.Background(), "s1", []string{"laptop"}); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetSearchHistory(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT query FROM search_history WHERE session_id = $1 ORDER BY position`)).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"query"}).AddRow("laptop").AddRow("camera"))

	got, err := s.GetSearchHistory(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSearchHistory failed: %v", err)
	}
	if len(got) != 2 || got[0] != "laptop" || got[1] != "camera" {
		t.Fatalf("unexpected history: %v", got)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT query FROM search_history WHERE session_id = $1 ORDER BY position`)).
		WithArgs("s2").
		WillReturnRows(sqlmock.NewRows([]string{"query"}))

	if _, err := s.GetSearchHistory(ctx, "s2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM session_users WHERE expires_at <= $1`)).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM session_carts WHERE expires_at <= $1`)).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM search_history WHERE created_at <= $1`)).
		WithArgs(fixedNow.Add(-time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := s.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if n != 9 {
		t.Fatalf("expected 9 rows purged, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS x (id INT)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Migrate(context.Background(), `CREATE TABLE IF NOT EXISTS x (id INT)`); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLockForSession_Serializes(t *testing.T) {
	s := &PostgresStore{}
	unlock := s.lockForSession("s1")

	acquired := make(chan struct{})
	go func() {
		u := s.lockForSession("s1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatalf("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second lock never acquired")
	}
}
