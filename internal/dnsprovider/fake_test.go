package dnsprovider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// fakeProvider is an in-memory provider API for a single base domain.
type fakeProvider struct {
	t *testing.T

	mu          sync.Mutex
	subdomains  map[string]Subdomain // keyed by relative name
	records     map[string][]Record  // keyed by fqdn
	apps        []App
	appDomains  map[string]map[string]bool
	failRecords bool
	nextID      int
	calls       []string
}

func newFakeProvider(t *testing.T) (*fakeProvider, *Client) {
	t.Helper()
	f := &fakeProvider{
		t:          t,
		subdomains: map[string]Subdomain{},
		records:    map[string][]Record{},
		appDomains: map[string]map[string]bool{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, NewClient(srv.URL, "provider-token", "example.com", "203.0.113.10", zerolog.Nop())
}

func (f *fakeProvider) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(f.t, "Bearer provider-token", r.Header.Get("Authorization"))
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "domains" && parts[2] == "subdomains" && r.Method == http.MethodPost:
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := f.subdomains[body["name"]]; ok {
			w.WriteHeader(http.StatusConflict)
			return
		}
		sub := Subdomain{ID: f.id(), Name: body["name"], FQDN: body["name"] + "." + parts[1]}
		f.subdomains[sub.Name] = sub
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sub)

	case len(parts) == 4 && parts[0] == "domains" && parts[2] == "subdomains":
		sub, ok := f.subdomains[parts[3]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.subdomains, parts[3])
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(sub)

	case len(parts) == 3 && parts[0] == "domains" && parts[2] == "dns-records":
		fqdn := parts[1]
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(f.records[fqdn])
			return
		}
		if f.failRecords {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("record backend down"))
			return
		}
		var rec Record
		json.NewDecoder(r.Body).Decode(&rec)
		rec.ID = f.id()
		f.records[fqdn] = append(f.records[fqdn], rec)
		json.NewEncoder(w).Encode(rec)

	case len(parts) == 4 && parts[0] == "domains" && parts[2] == "dns-records" && r.Method == http.MethodDelete:
		fqdn := parts[1]
		recs := f.records[fqdn]
		for i, rec := range recs {
			if rec.ID == parts[3] {
				f.records[fqdn] = append(recs[:i], recs[i+1:]...)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)

	case len(parts) == 1 && parts[0] == "apps":
		var out []App
		for _, a := range f.apps {
			if a.Name == r.URL.Query().Get("name") {
				out = append(out, a)
			}
		}
		json.NewEncoder(w).Encode(out)

	case len(parts) == 3 && parts[0] == "apps" && parts[2] == "domains" && r.Method == http.MethodPost:
		var body AppDomain
		json.NewDecoder(r.Body).Decode(&body)
		if f.appDomains[parts[1]] == nil {
			f.appDomains[parts[1]] = map[string]bool{}
		}
		if f.appDomains[parts[1]][body.Domain] {
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.appDomains[parts[1]][body.Domain] = true
		w.WriteHeader(http.StatusCreated)

	case len(parts) == 4 && parts[0] == "apps" && parts[2] == "domains":
		if !f.appDomains[parts[1]][parts[3]] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.appDomains[parts[1]], parts[3])
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
