package pinning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(srv *httptest.Server, token string) *Client {
	c := New(srv.URL, token, srv.Client())
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestPinPublic(t *testing.T) {
	var gotMeta, gotOptions string
	var gotAuth string
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pinning/pinFileToIPFS" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotMeta = r.FormValue("pinataMetadata")
		gotOptions = r.FormValue("pinataOptions")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		gotFile, _ = io.ReadAll(f)
		fmt.Fprint(w, `{"IpfsHash":"bafytest123"}`)
	}))
	defer srv.Close()

	c := testClient(srv, "tok")
	cid, err := c.PinPublic(context.Background(), []byte("pngbytes"), "cat.png", "")
	if err != nil {
		t.Fatalf("pin failed: %v", err)
	}
	if cid != "bafytest123" {
		t.Fatalf("expected bafytest123, got %q", cid)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if string(gotFile) != "pngbytes" {
		t.Fatalf("file bytes differ: %q", gotFile)
	}

	var meta struct {
		Name      string            `json:"name"`
		Keyvalues map[string]string `json:"keyvalues"`
	}
	if err := json.Unmarshal([]byte(gotMeta), &meta); err != nil {
		t.Fatalf("bad metadata %q: %v", gotMeta, err)
	}
	if meta.Name != "cat.png" || meta.Keyvalues["isPrivate"] != "false" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if !strings.Contains(gotOptions, `"cidVersion":1`) {
		t.Fatalf("options missing cidVersion: %q", gotOptions)
	}
	if strings.Contains(gotOptions, "groupId") {
		t.Fatalf("ungrouped upload should not carry groupId: %q", gotOptions)
	}
}

func TestPinPublicWithGroup(t *testing.T) {
	var gotOptions, gotNetwork string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		gotOptions = r.FormValue("pinataOptions")
		gotNetwork = r.FormValue("network")
		fmt.Fprint(w, `{"IpfsHash":"bafygrouped"}`)
	}))
	defer srv.Close()

	cid, err := testClient(srv, "tok").PinPublic(context.Background(), []byte("x"), "a.png", "grp-1")
	if err != nil {
		t.Fatalf("pin failed: %v", err)
	}
	if cid != "bafygrouped" {
		t.Fatalf("unexpected cid %q", cid)
	}
	if !strings.Contains(gotOptions, `"groupId":"grp-1"`) {
		t.Fatalf("options missing groupId: %q", gotOptions)
	}
	if gotNetwork != NetworkPublic {
		t.Fatalf("expected network=public, got %q", gotNetwork)
	}
}

func TestPinPublicMissingCID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"queued"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv, "tok").PinPublic(context.Background(), []byte("x"), "a.png", "")
	if !errors.Is(err, ErrUploadIncomplete) {
		t.Fatalf("expected ErrUploadIncomplete, got %v", err)
	}
}

func TestPinPublicNoToken(t *testing.T) {
	c := New("https://api.example.com", "", nil)
	_, err := c.PinPublic(context.Background(), []byte("x"), "a.png", "")
	if !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
}

func TestAPIErrorMessagePreference(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"error":"rate limited"}`, "rate limited"},
		{`{"message":"bad file"}`, "bad file"},
		{`not json`, "Payment Required"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			fmt.Fprint(w, tc.body)
		}))
		_, err := testClient(srv, "tok").PinPublic(context.Background(), []byte("x"), "a.png", "")
		srv.Close()
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("body %q: expected APIError, got %v", tc.body, err)
		}
		if apiErr.Status != http.StatusPaymentRequired {
			t.Fatalf("body %q: status %d", tc.body, apiErr.Status)
		}
		if apiErr.Message != tc.want {
			t.Fatalf("body %q: expected message %q, got %q", tc.body, tc.want, apiErr.Message)
		}
	}
}

func TestUploadPrivate(t *testing.T) {
	var signReq map[string]any
	var uploadedFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/files/sign":
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &signReq); err != nil {
				t.Fatalf("bad sign body: %v", err)
			}
			fmt.Fprintf(w, `{"data":%q}`, "http://"+r.Host+"/presigned/upload")
		case "/presigned/upload":
			r.ParseMultipartForm(1 << 20)
			f, _, err := r.FormFile("file")
			if err != nil {
				t.Fatalf("form file: %v", err)
			}
			uploadedFile, _ = io.ReadAll(f)
			fmt.Fprint(w, `{"data":{"cid":"bafyprivate"}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cid, err := testClient(srv, "tok").UploadPrivate(context.Background(), []byte("secret"), "diary.png", "grp-2")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if cid != "bafyprivate" {
		t.Fatalf("unexpected cid %q", cid)
	}
	if string(uploadedFile) != "secret" {
		t.Fatalf("uploaded bytes differ: %q", uploadedFile)
	}
	if signReq["filename"] != "diary.png" {
		t.Fatalf("sign filename: %v", signReq["filename"])
	}
	if signReq["expires"] != float64(3600) {
		t.Fatalf("sign expires: %v", signReq["expires"])
	}
	if signReq["group_id"] != "grp-2" || signReq["network"] != NetworkPrivate {
		t.Fatalf("sign group fields: %v", signReq)
	}
	kv, _ := signReq["keyvalues"].(map[string]any)
	if kv["isPrivate"] != "true" {
		t.Fatalf("sign keyvalues: %v", signReq["keyvalues"])
	}
}

func TestUploadPrivateSignFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"scope missing"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv, "tok").UploadPrivate(context.Background(), []byte("x"), "a.png", "")
	if !errors.Is(err, ErrSignFailed) {
		t.Fatalf("expected ErrSignFailed, got %v", err)
	}
}

func TestSignDownload(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/files/private/download_link" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)
		fmt.Fprint(w, `{"data":"https://gw.example/files/bafy?sig=abc"}`)
	}))
	defer srv.Close()

	signed, err := testClient(srv, "tok").SignDownload(context.Background(), "https://gw.example/files/bafy?width=200")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if signed != "https://gw.example/files/bafy?sig=abc" {
		t.Fatalf("unexpected url %q", signed)
	}
	if gotReq["url"] != "https://gw.example/files/bafy?width=200" {
		t.Fatalf("request url: %v", gotReq["url"])
	}
	if gotReq["method"] != "GET" || gotReq["expires"] != float64(86400) {
		t.Fatalf("request fields: %v", gotReq)
	}
}

func TestEnsureGroupReusesExisting(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if r.URL.Path != "/v3/groups/private" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("name") != "vault media" {
				t.Errorf("expected name filter, got %q", r.URL.RawQuery)
			}
			fmt.Fprint(w, `{"data":{"groups":[{"id":"g-old","name":"vault media old"},{"id":"g-exact","name":"vault media"}]}}`)
			return
		}
		created = true
		fmt.Fprint(w, `{"data":{"id":"g-new"}}`)
	}))
	defer srv.Close()

	id, err := testClient(srv, "tok").EnsureGroup(context.Background(), "vault media", false)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if id != "g-exact" {
		t.Fatalf("expected g-exact, got %q", id)
	}
	if created {
		t.Fatalf("should not create when an exact match exists")
	}
}

func TestEnsureGroupCreates(t *testing.T) {
	var createBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"data":{"groups":[]}}`)
			return
		}
		if r.URL.Path != "/v3/groups/public" {
			t.Errorf("unexpected create path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &createBody)
		fmt.Fprint(w, `{"data":{"id":"g-created"}}`)
	}))
	defer srv.Close()

	id, err := testClient(srv, "tok").EnsureGroup(context.Background(), "wiki", true)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if id != "g-created" {
		t.Fatalf("expected g-created, got %q", id)
	}
	if createBody["name"] != "wiki" || createBody["is_public"] != true {
		t.Fatalf("unexpected create body %v", createBody)
	}
}

func TestResolveGroupNeverFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if id := testClient(srv, "tok").ResolveGroup(context.Background(), "wiki", true); id != "" {
		t.Fatalf("expected empty id on failure, got %q", id)
	}
	if id := testClient(srv, "tok").ResolveGroup(context.Background(), "", true); id != "" {
		t.Fatalf("expected empty id for empty name, got %q", id)
	}
}

func TestHost(t *testing.T) {
	c := New("https://api.pinata.cloud/", "t", nil)
	if c.Host() != "api.pinata.cloud" {
		t.Fatalf("unexpected host %q", c.Host())
	}
}
