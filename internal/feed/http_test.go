package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Canada28Bot/internal/model"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFeed_Latest(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"issue": 3312345, "sum": 17, "time": "10-17 21:03:30", "nums": [5, 6, 6]}`)
	f := NewHTTPFeed(srv.URL, 2*time.Second, "")

	got, err := f.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DrawResult{Issue: "3312345", Sum: 17, Time: "10-17 21:03:30"}, got)
}

func TestHTTPFeed_Non2xx(t *testing.T) {
	srv := serve(t, http.StatusBadGateway, `upstream down`)
	_, err := NewHTTPFeed(srv.URL, 2*time.Second, "").Latest(context.Background())
	assert.Error(t, err)
}

func TestHTTPFeed_TimeoutIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	start := time.Now()
	_, err := NewHTTPFeed(srv.URL, 100*time.Millisecond, "").Latest(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestParseDraw(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    model.DrawResult
		wantErr bool
	}{
		{name: "numbers", body: `{"issue": 100, "sum": 0, "time": "01-01 00:00:00"}`,
			want: model.DrawResult{Issue: "100", Sum: 0, Time: "01-01 00:00:00"}},
		{name: "strings", body: `{"issue": "A-7", "sum": " 27 ", "time": "12-31 23:59:59"}`,
			want: model.DrawResult{Issue: "A-7", Sum: 27, Time: "12-31 23:59:59"}},
		{name: "missing issue", body: `{"sum": 3, "time": "01-01 00:00:00"}`, wantErr: true},
		{name: "missing sum", body: `{"issue": 1, "time": "01-01 00:00:00"}`, wantErr: true},
		{name: "missing time", body: `{"issue": 1, "sum": 3}`, wantErr: true},
		{name: "null sum", body: `{"issue": 1, "sum": null, "time": "01-01 00:00:00"}`, wantErr: true},
		{name: "fractional sum", body: `{"issue": 1, "sum": 3.5, "time": "01-01 00:00:00"}`, wantErr: true},
		{name: "not json", body: `<html>maintenance</html>`, wantErr: true},
		{name: "array", body: `[1,2,3]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDraw([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMockFeed_Script(t *testing.T) {
	r1 := &model.DrawResult{Issue: "1", Sum: 3, Time: "01-01 00:00:00"}
	r2 := &model.DrawResult{Issue: "2", Sum: 20, Time: "01-01 00:03:30"}
	m := &MockFeed{Steps: []*model.DrawResult{r1, nil, r2}}
	ctx := context.Background()

	got, err := m.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", got.Issue)
	_, err = m.Latest(ctx)
	assert.ErrorIs(t, err, ErrNoResult)
	got, _ = m.Latest(ctx)
	assert.Equal(t, "2", got.Issue)
	got, _ = m.Latest(ctx)
	assert.Equal(t, "2", got.Issue, "exhausted script repeats the last step")
	assert.Equal(t, 4, m.Calls())
}
