package acrcloud_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mixsplit/internal/services/acrcloud"
)

func fixedClock() time.Time { return time.Unix(1700000000, 0) }

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := acrcloud.New("identify-eu-west-1.acrcloud.com", "", "secret"); err == nil {
		t.Fatal("expected error when access key missing")
	}
	if _, err := acrcloud.New("", "key", "secret"); err == nil {
		t.Fatal("expected error when host missing")
	}
}

func TestSignIsStable(t *testing.T) {
	first := acrcloud.Sign("key", "secret", "1700000000")
	second := acrcloud.Sign("key", "secret", "1700000000")
	if first == "" || first != second {
		t.Fatalf("expected stable signature, got %q and %q", first, second)
	}
	if acrcloud.Sign("key", "secret", "1700000001") == first {
		t.Fatal("expected signature to change with timestamp")
	}
}

func TestIdentifyMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/identify" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("signature"); got != acrcloud.Sign("key", "secret", "1700000000") {
			t.Errorf("unexpected signature %q", got)
		}
		if got := r.FormValue("sample_bytes"); got != "4" {
			t.Errorf("unexpected sample_bytes %q", got)
		}
		file, _, err := r.FormFile("sample")
		if err != nil {
			t.Errorf("missing sample: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "RIFF" {
				t.Errorf("unexpected sample payload %q", data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":{"code":0,"msg":"Success"},"metadata":{"music":[
			{"title":"Low Score","artists":[{"name":"Nobody"}],"score":40},
			{"title":"Windowlicker","artists":[{"name":"Aphex Twin"}],"album":{"name":"Windowlicker"},"release_date":"1999-03-22","genres":[{"name":"Electronic"}],"external_ids":{"isrc":"GBBPW9900001"},"label":"Warp","score":97}
		]}}`))
	}))
	t.Cleanup(server.Close)

	client, err := acrcloud.New(server.URL, "key", "secret", acrcloud.WithClock(fixedClock))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	result, err := client.Identify(context.Background(), []byte("RIFF"))
	if err != nil {
		t.Fatalf("Identify returned error: %v", err)
	}
	if result == nil || result.Title != "Windowlicker" || result.Artist != "Aphex Twin" {
		t.Fatalf("unexpected result %#v", result)
	}
	if result.Album != "Windowlicker" || result.Genre != "Electronic" || result.ISRC != "GBBPW9900001" || result.Score != 97 {
		t.Fatalf("unexpected metadata %#v", result)
	}
}

func TestIdentifyNoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":{"code":1001,"msg":"No result"}}`))
	}))
	t.Cleanup(server.Close)

	client, err := acrcloud.New(server.URL, "key", "secret")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	result, err := client.Identify(context.Background(), []byte("RIFF"))
	if err != nil || result != nil {
		t.Fatalf("expected no match, got %#v err=%v", result, err)
	}
}

func TestIdentifyQuotaAndErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		quota  bool
	}{
		{name: "quota", status: http.StatusOK, body: `{"status":{"code":3003,"msg":"limit exceeded"}}`, quota: true},
		{name: "invalid key", status: http.StatusOK, body: `{"status":{"code":3001,"msg":"missing/invalid access key"}}`},
		{name: "http error", status: http.StatusBadGateway, body: `bad gateway`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(server.Close)

			client, err := acrcloud.New(server.URL, "key", "secret")
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			_, err = client.Identify(context.Background(), []byte("RIFF"))
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, acrcloud.ErrQuota) != tt.quota {
				t.Fatalf("quota classification mismatch: %v", err)
			}
		})
	}
}
