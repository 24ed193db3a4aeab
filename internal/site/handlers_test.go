package site

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Prapti-XR/Prapti-sub000/internal/asset"
	"github.com/Prapti-XR/Prapti-sub000/internal/background"
	"github.com/Prapti-XR/Prapti-sub000/internal/cache"
	"github.com/Prapti-XR/Prapti-sub000/internal/policy"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

func asRole(role policy.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		policy.SetPrincipal(c, policy.Principal{UserID: "user-1", Role: role})
		return c.Next()
	}
}

func newSiteApp(svc *Service, auth fiber.Handler) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/api/sites"), svc, auth)
	return app
}

type detailEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Source  string          `json:"source"`
}

func TestSiteDetailRepeatsDataAndCountsViews(t *testing.T) {
	mock := newMock(t)
	rt, runner := newRedisReadThrough(t)
	svc := NewService(mock, Options{Cache: rt, Runner: runner})
	app := newSiteApp(svc, asRole(policy.RoleUser))
	ctx := context.Background()

	mock.ExpectQuery(`WHERE id = \$1 AND is_published = true`).
		WithArgs("s1").
		WillReturnRows(addSite(pgxmock.NewRows(siteCols), "s1", "Basilica", 15.5, 73.9, true))
	mock.ExpectQuery(`FROM assets`).
		WithArgs("s1", true).
		WillReturnRows(pgxmock.NewRows(assetCols).
			AddRow("a1", asset.Model3D, "Nave", "", "sites/s1/MODEL_3D/a1.glb", "https://cdn/a1.glb", int64(1)<<33, "model/gltf-binary", "glb",
				false, "", 0, 0, true, true, "READY", "s1", "", fixedTime))
	mock.ExpectQuery(`FROM tags t`).
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("church"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM trivia_questions`).
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(`UPDATE heritage_sites SET view_count = view_count \+ 1`).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE heritage_sites SET view_count = view_count \+ 1`).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	fetch := func() detailEnvelope {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/sites/s1", nil))
		if err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("detail status: %v %v", resp.StatusCode, err)
		}
		var env detailEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = runner.Wait(ctx)
		return env
	}

	first := fetch()
	second := fetch()
	if first.Source != cache.SourceDatabase || second.Source != cache.SourceRedis {
		t.Fatalf("unexpected sources %s, %s", first.Source, second.Source)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatalf("detail data differs:\n%s\n%s", first.Data, second.Data)
	}
	if !bytes.Contains(first.Data, []byte(`"fileSize":8589934592`)) || !bytes.Contains(first.Data, []byte(`"viewCount":10`)) {
		t.Fatalf("unexpected detail payload %s", first.Data)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSiteDetailNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`WHERE id = \$1 AND is_published = true`).WithArgs("gone").WillReturnRows(pgxmock.NewRows(siteCols))

	app := newSiteApp(NewService(mock, Options{}), asRole(policy.RoleUser))
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/sites/gone", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// heldViews records view-count updates and blocks them until release is
// closed, so they run after the request that scheduled them has returned.
type heldViews struct {
	pgxmock.PgxPoolIface
	release chan struct{}

	mu  sync.Mutex
	ids []string
}

func (h *heldViews) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	<-h.release
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, args[0].(string))
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func TestSiteDetailViewCountUsesOwnID(t *testing.T) {
	mock := newMock(t)
	mock.MatchExpectationsInOrder(false)
	for _, id := range []string{"aaaaaaaa", "bbbbbbbb"} {
		mock.ExpectQuery(`WHERE id = \$1 AND is_published = true`).
			WithArgs(id).
			WillReturnRows(addSite(pgxmock.NewRows(siteCols), id, "Site "+id, 15.5, 73.9, true))
		mock.ExpectQuery(`FROM assets`).WithArgs(id, true).WillReturnRows(pgxmock.NewRows(assetCols))
		mock.ExpectQuery(`FROM tags t`).WithArgs(id).WillReturnRows(pgxmock.NewRows([]string{"name"}))
		mock.ExpectQuery(`SELECT count\(\*\) FROM trivia_questions`).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	}

	views := &heldViews{PgxPoolIface: mock, release: make(chan struct{})}
	runner := background.NewRunner(nil, 8)
	app := newSiteApp(NewService(views, Options{Runner: runner}), asRole(policy.RoleUser))

	for _, id := range []string{"aaaaaaaa", "bbbbbbbb"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/sites/"+id, nil))
		if err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("detail %s: %v %v", id, resp.StatusCode, err)
		}
	}
	close(views.release)
	if err := runner.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	counts := map[string]int{}
	for _, id := range views.ids {
		counts[id]++
	}
	if counts["aaaaaaaa"] != 1 || counts["bbbbbbbb"] != 1 {
		t.Fatalf("expected one view per site, got %v", views.ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNearbyHandlerParsesQuery(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM heritage_sites s`).
		WithArgs(14.539, 14.64, 74.73, 74.963, "Colonial", 200).
		WillReturnRows(pgxmock.NewRows(nearbyCols).
			AddRow("s1", "Fort", "", 14.60, 74.80, "India", "Goa", "Colonial", false, 4.0, nil, nil, nil, nil))

	app := newSiteApp(NewService(mock, Options{}), asRole(policy.RoleUser))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/api/sites/nearby?north=14.640&south=14.539&east=74.963&west=74.730&era=Colonial&lat=14.6&lon=74.8&radius=bogus", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("nearby status: %v", err)
	}
	var res NearbyResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Count != 1 || res.Sites[0].Distance == nil || *res.Sites[0].Distance > DefaultRadiusKm {
		t.Fatalf("unexpected nearby result %+v", res)
	}
}

func TestNearbyHandlerRejectsNonFiniteParams(t *testing.T) {
	mock := newMock(t)
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`FROM heritage_sites s`).
			WithArgs(-90.0, 90.0, -180.0, 180.0, 200).
			WillReturnRows(pgxmock.NewRows(nearbyCols).
				AddRow("far", "Far", "", 50.0, 60.0, "", "", "", false, 1.0, nil, nil, nil, nil))
	}
	app := newSiteApp(NewService(mock, Options{}), asRole(policy.RoleUser))

	cases := []struct {
		query     string
		wantCount int
	}{
		{"lat=NaN&lon=0&radius=1&north=NaN", 1},
		{"lat=0&lon=0&radius=Inf&east=-Inf", 0},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/sites/nearby?"+tc.query, nil))
		if err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %v %v", tc.query, resp.StatusCode, err)
		}
		var res NearbyResult
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatalf("%s: decode: %v", tc.query, err)
		}
		if res.Count != tc.wantCount || len(res.Sites) != tc.wantCount {
			t.Fatalf("%s: expected %d sites, got %+v", tc.query, tc.wantCount, res)
		}
		for _, s := range res.Sites {
			if s.Distance != nil {
				t.Fatalf("%s: unexpected distance on %s", tc.query, s.ID)
			}
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNearbyHandlerFailureBody(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM heritage_sites s`).WillReturnError(context.Canceled)

	app := newSiteApp(NewService(mock, Options{}), asRole(policy.RoleUser))
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/sites/nearby", nil))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	sites, _ := body["sites"].([]any)
	if body["error"] == nil || body["source"] != "database" || body["count"] != float64(0) || sites == nil || len(sites) != 0 {
		t.Fatalf("unexpected failure body %v", body)
	}
}

func TestSiteMutationsRequireRoles(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"name": "X", "latitude": 1, "longitude": 1})
	cases := []struct {
		role   policy.Role
		method string
		path   string
		want   int
	}{
		{policy.RoleUser, http.MethodPost, "/api/sites/", http.StatusForbidden},
		{policy.RoleContributor, http.MethodPatch, "/api/sites/s1", http.StatusForbidden},
		{policy.RoleModerator, http.MethodDelete, "/api/sites/s1", http.StatusForbidden},
	}
	for _, tc := range cases {
		app := newSiteApp(NewService(nil, Options{}), asRole(tc.role))
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s %s as %s: expected %d, got %d", tc.method, tc.path, tc.role, tc.want, resp.StatusCode)
		}
	}
}

func TestCreateSiteHandler(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO heritage_sites`).
		WithArgs(pgxmock.AnyArg(), "Fort", "", "", 1.0, 2.0, "", "", "", (*int)(nil), "", "", false, false, "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(fixedTime, fixedTime))
	mock.ExpectCommit()

	app := newSiteApp(NewService(mock, Options{}), asRole(policy.RoleModerator))

	bad, _ := json.Marshal(map[string]any{"name": "Fort"})
	req := httptest.NewRequest(http.MethodPost, "/api/sites/", bytes.NewReader(bad))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing coordinates, got %d", resp.StatusCode)
	}

	good, _ := json.Marshal(map[string]any{"name": "Fort", "latitude": 1.0, "longitude": 2.0})
	req = httptest.NewRequest(http.MethodPost, "/api/sites/", bytes.NewReader(good))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
