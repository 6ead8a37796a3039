package directory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/woozymasta/beacon/internal/models"
	"github.com/woozymasta/beacon/internal/pdiff"
	"github.com/woozymasta/beacon/internal/registry"
	"github.com/woozymasta/beacon/internal/sanitize"
)

type stubVerifier struct {
	err   error
	calls []string
	mu    sync.Mutex
}

func (v *stubVerifier) Verify(_ context.Context, ip string, _ int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, ip)
	return v.err
}

type stubCountries map[string]string

func (c stubCountries) CountryCode(ip string) string { return c[ip] }

func newService(t *testing.T, verifier Verifier, opts ...Option) *Service {
	t.Helper()

	filter, err := sanitize.New(nil, "*")
	if err != nil {
		t.Fatalf("sanitize.New: %v", err)
	}

	return New(registry.New(), verifier, filter, opts...)
}

func registerRequest(ip string) models.RegisterRequest {
	return models.RegisterRequest{
		IP:          ip,
		Port:        37015,
		AuthPort:    8081,
		Name:        "shit server",
		Description: "a damn fine server",
		Map:         "mp_forwardbase_kodai",
		Playlist:    "aitdm",
		MaxPlayers:  16,
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	verifier := &stubVerifier{}
	svc := newService(t, verifier, WithCountryResolver(stubCountries{"203.0.113.7": "NZ"}))

	res := svc.Register(context.Background(), registerRequest("203.0.113.7"))
	if !res.Success || res.ID == "" {
		t.Fatalf("Register = %+v, want success with id", res)
	}

	rec, ok := svc.Store().Get(res.ID)
	if !ok {
		t.Fatal("record not stored")
	}
	if rec.IP != "203.0.113.7" {
		t.Fatalf("IP = %q, want transport address", rec.IP)
	}
	if rec.Name != "**** server" || rec.Description != "a **** fine server" {
		t.Fatalf("text not sanitized: %q / %q", rec.Name, rec.Description)
	}
	if rec.CountryCode != "NZ" {
		t.Fatalf("CountryCode = %q, want NZ", rec.CountryCode)
	}
	if rec.ModInfo != nil {
		t.Fatalf("ModInfo = %+v, want nil without payload", rec.ModInfo)
	}
	if len(verifier.calls) != 1 || verifier.calls[0] != "203.0.113.7" {
		t.Fatalf("verifier calls = %v", verifier.calls)
	}
}

func TestRegisterVerificationFailure(t *testing.T) {
	t.Parallel()

	verifier := &stubVerifier{}
	svc := newService(t, verifier)

	if res := svc.Register(context.Background(), registerRequest("10.0.0.1")); !res.Success {
		t.Fatalf("first Register = %+v", res)
	}

	verifier.err = errors.New("wrong answer")
	res := svc.Register(context.Background(), registerRequest("10.0.0.1"))
	if res.Success || res.ID != "" {
		t.Fatalf("Register = %+v, want failure without id", res)
	}
	if n := svc.Store().Len(); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
}

func TestRegisterDistinctIDs(t *testing.T) {
	t.Parallel()

	svc := newService(t, &stubVerifier{})

	a := svc.Register(context.Background(), registerRequest("10.0.0.1"))
	b := svc.Register(context.Background(), registerRequest("10.0.0.1"))
	if a.ID == b.ID {
		t.Fatalf("ids collide: %q", a.ID)
	}
}

func TestRegisterModInfo(t *testing.T) {
	t.Parallel()

	const goodDiff = "$ENUM_ADD eItems\n\tNEW_ITEM\n$END\nbool unlockedNew\n"
	const badDiff = "this is { not a diff"

	payload := []byte(`{"Mods":[
		{"Name":"Good","Version":"1.0.0","RequiredOnClient":true,"pdiff":` + strconv.Quote(goodDiff) + `},
		{"Name":"Bad","Version":"0.0.1","pdiff":` + strconv.Quote(badDiff) + `},
		{"Name":"NoDiff","Version":"3.0.0"}
	]}`)

	svc := newService(t, &stubVerifier{})
	req := registerRequest("10.0.0.1")
	req.ModInfo = payload

	res := svc.Register(context.Background(), req)
	if !res.Success {
		t.Fatalf("Register = %+v", res)
	}

	rec, _ := svc.Store().Get(res.ID)
	if rec.ModInfo == nil || len(rec.ModInfo.Mods) != 3 {
		t.Fatalf("ModInfo = %+v, want 3 mods", rec.ModInfo)
	}

	good, bad, plain := rec.ModInfo.Mods[0], rec.ModInfo.Mods[1], rec.ModInfo.Mods[2]
	if good.Pdiff == nil || good.Pdiff.Hash != pdiff.Hash(goodDiff) || good.PdiffHash != pdiff.Hash(goodDiff) {
		t.Fatalf("Good = %+v", good)
	}
	if bad.Pdiff != nil || bad.PdiffHash != pdiff.Hash(badDiff) {
		t.Fatalf("Bad = %+v, want nil diff with hash", bad)
	}
	if plain.Pdiff != nil || plain.PdiffHash != "" {
		t.Fatalf("NoDiff = %+v", plain)
	}

	// a mistyped entry only costs that entry its diff
	req = registerRequest("10.0.0.1")
	req.ModInfo = []byte(`{"Mods":[
		{"Name":"Good","Version":"1.0.0","pdiff":"bool x"},
		{"Name":"Weird","Version":2,"RequiredOnClient":"yes","pdiff":42},
		17
	]}`)

	res = svc.Register(context.Background(), req)
	rec, _ = svc.Store().Get(res.ID)
	if rec.ModInfo == nil || len(rec.ModInfo.Mods) != 3 {
		t.Fatalf("ModInfo = %+v, want 3 mods", rec.ModInfo)
	}

	good, weird, junk := rec.ModInfo.Mods[0], rec.ModInfo.Mods[1], rec.ModInfo.Mods[2]
	if good.Name != "Good" || good.Pdiff == nil || len(good.Pdiff.Members) != 1 || good.PdiffHash != pdiff.Hash("bool x") {
		t.Fatalf("Good = %+v", good)
	}
	if weird.Name != "Weird" || weird.Version != "" || weird.RequiredOnClient || weird.Pdiff != nil || weird.PdiffHash != "" {
		t.Fatalf("Weird = %+v, want name kept and diff dropped", weird)
	}
	if junk.Name != "" || junk.Pdiff != nil {
		t.Fatalf("non-object entry = %+v, want zero mod", junk)
	}
}

func TestRegisterMalformedModInfo(t *testing.T) {
	t.Parallel()

	payloads := []string{
		`not json`,
		`{"Mods":"not an array"}`,
		`{"Mods":null}`,
		`{"Other":[]}`,
		`[]`,
	}

	svc := newService(t, &stubVerifier{})
	for _, payload := range payloads {
		req := registerRequest("10.0.0.1")
		req.ModInfo = []byte(payload)

		res := svc.Register(context.Background(), req)
		if !res.Success {
			t.Fatalf("Register(%s) failed", payload)
		}
		rec, _ := svc.Store().Get(res.ID)
		if rec.ModInfo != nil {
			t.Fatalf("Register(%s) ModInfo = %+v, want nil", payload, rec.ModInfo)
		}
	}

	req := registerRequest("10.0.0.1")
	req.ModInfo = []byte(`{"Mods":[]}`)
	res := svc.Register(context.Background(), req)
	rec, _ := svc.Store().Get(res.ID)
	if rec.ModInfo == nil || len(rec.ModInfo.Mods) != 0 {
		t.Fatalf("empty Mods array: ModInfo = %+v, want empty list", rec.ModInfo)
	}
}

func TestMutationsFromForeignAddressAreSilent(t *testing.T) {
	t.Parallel()

	svc := newService(t, &stubVerifier{})
	res := svc.Register(context.Background(), registerRequest("10.0.0.1"))
	before, _ := svc.Store().Get(res.ID)

	players := 12
	svc.Refresh(res.ID, "10.0.0.2", &players)
	svc.Patch(res.ID, "10.0.0.2", map[string]string{"name": "owned", "map": "mp_box"})
	svc.Deregister(res.ID, "10.0.0.2")

	after, ok := svc.Store().Get(res.ID)
	if !ok {
		t.Fatal("foreign Deregister removed the record")
	}
	if after.PlayerCount != before.PlayerCount || after.Name != before.Name || after.Map != before.Map ||
		!after.LastHeartbeat.Equal(before.LastHeartbeat) {
		t.Fatalf("foreign mutation changed record: %+v", after)
	}

	// unknown ids behave the same
	svc.Refresh("unknown", "10.0.0.1", &players)
	svc.Patch("unknown", "10.0.0.1", map[string]string{"name": "x"})
	svc.Deregister("unknown", "10.0.0.1")
	if svc.Store().Len() != 1 {
		t.Fatalf("Len = %d, want 1", svc.Store().Len())
	}
}

func TestOwnerMutations(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	filter := sanitize.NewWithWords(nil, "*")
	svc := New(registry.New(registry.WithClock(clock)), &stubVerifier{}, filter)

	res := svc.Register(context.Background(), registerRequest("10.0.0.1"))

	mu.Lock()
	now = now.Add(10 * time.Second)
	mu.Unlock()

	players := 4
	svc.Refresh(res.ID, "10.0.0.1", &players)
	rec, _ := svc.Store().Get(res.ID)
	if rec.PlayerCount != 4 || !rec.LastHeartbeat.Equal(clock()) {
		t.Fatalf("after Refresh = %+v", rec)
	}

	svc.Refresh(res.ID, "10.0.0.1", nil)
	rec, _ = svc.Store().Get(res.ID)
	if rec.PlayerCount != 4 {
		t.Fatalf("Refresh without count changed PlayerCount to %d", rec.PlayerCount)
	}

	svc.Patch(res.ID, "10.0.0.1", map[string]string{"playerCount": "7", "unknownField": "x"})
	rec, _ = svc.Store().Get(res.ID)
	if rec.PlayerCount != 7 {
		t.Fatalf("PlayerCount = %d, want 7", rec.PlayerCount)
	}

	svc.Deregister(res.ID, "10.0.0.1")
	if _, ok := svc.Store().Get(res.ID); ok {
		t.Fatal("owner Deregister left the record")
	}
}
