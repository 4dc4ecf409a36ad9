package bucketnotify_test

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/mux"
	"github.com/mashiike/bucketnotify"
	"github.com/stretchr/testify/require"
)

const deniedBucket = "denied"

type stubNotificationConfiguration struct {
	XMLName                     xml.Name                         `xml:"NotificationConfiguration"`
	CloudFunctionConfigurations []stubCloudFunctionConfiguration `xml:"CloudFunctionConfiguration"`
}

type stubCloudFunctionConfiguration struct {
	ID            string   `xml:"Id,omitempty" json:"Id,omitempty"`
	CloudFunction string   `xml:"CloudFunction" json:"CloudFunction"`
	Events        []string `xml:"Event" json:"Event"`
}

// s3StubHandler serves the bucket notification subresource of S3.
type s3StubHandler struct {
	mu      sync.RWMutex
	t       *testing.T
	router  *mux.Router
	configs map[string]*stubNotificationConfiguration
	puts    map[string]int
}

func NewS3Stub(t *testing.T) (*httptest.Server, *s3StubHandler) {
	t.Helper()
	stub := &s3StubHandler{
		t:       t,
		router:  mux.NewRouter(),
		configs: make(map[string]*stubNotificationConfiguration),
		puts:    make(map[string]int),
	}
	stub.setupRoute()
	return httptest.NewServer(stub), stub
}

func (h *s3StubHandler) setupRoute() {
	h.router.HandleFunc("/{bucket}", h.handlePutNotification).Methods(http.MethodPut)
	h.router.HandleFunc("/{bucket}", h.handleGetNotification).Methods(http.MethodGet)
}

func (h *s3StubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *s3StubHandler) handlePutNotification(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("notification") {
		http.Error(w, "unexpected subresource", http.StatusNotImplemented)
		return
	}
	bucket := mux.Vars(r)["bucket"]
	h.mu.Lock()
	h.puts[bucket]++
	h.mu.Unlock()
	if bucket == deniedBucket {
		writeS3Error(w, http.StatusForbidden, "AccessDenied", "Access Denied")
		return
	}
	bs, err := io.ReadAll(r.Body)
	require.NoError(h.t, err)
	var cfg stubNotificationConfiguration
	if err := xml.Unmarshal(bs, &cfg); err != nil {
		writeS3Error(w, http.StatusBadRequest, "MalformedXML", err.Error())
		return
	}
	h.mu.Lock()
	h.configs[bucket] = &cfg
	h.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (h *s3StubHandler) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("notification") {
		http.Error(w, "unexpected subresource", http.StatusNotImplemented)
		return
	}
	bucket := mux.Vars(r)["bucket"]
	if bucket == deniedBucket {
		writeS3Error(w, http.StatusForbidden, "AccessDenied", "Access Denied")
		return
	}
	cfg := h.Config(bucket)
	if cfg == nil {
		cfg = &stubNotificationConfiguration{}
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	require.NoError(h.t, xml.NewEncoder(w).Encode(cfg))
}

func (h *s3StubHandler) Config(bucket string) *stubNotificationConfiguration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.configs[bucket]
}

func (h *s3StubHandler) SetConfig(bucket string, cfg *stubNotificationConfiguration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.configs[bucket] = cfg
}

func (h *s3StubHandler) Puts(bucket string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.puts[bucket]
}

func writeS3Error(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<Error><Code>`+code+`</Code><Message>`+message+`</Message>`+
		`<RequestId>STUBREQUEST</RequestId><HostId>stub</HostId></Error>`)
}

func newStubS3Client(serverURL string) *s3.Client {
	return bucketnotify.NewS3Client(aws.Config{
		Region:      "us-east-1",
		Credentials: aws.AnonymousCredentials{},
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(serverURL)
		o.UsePathStyle = true
	})
}

// responseStubHandler receives the pre-signed PUT that reports a custom
// resource result back to CloudFormation.
type responseStubHandler struct {
	mu        sync.RWMutex
	t         *testing.T
	router    *mux.Router
	responses map[string][]map[string]interface{}
}

func NewResponseStub(t *testing.T) (*httptest.Server, *responseStubHandler) {
	t.Helper()
	stub := &responseStubHandler{
		t:         t,
		router:    mux.NewRouter(),
		responses: make(map[string][]map[string]interface{}),
	}
	stub.router.HandleFunc("/responses/{id}", stub.handleResponse).Methods(http.MethodPut)
	return httptest.NewServer(stub), stub
}

func (h *responseStubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *responseStubHandler) handleResponse(w http.ResponseWriter, r *http.Request) {
	var resp map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := mux.Vars(r)["id"]
	h.mu.Lock()
	h.responses[id] = append(h.responses[id], resp)
	h.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// Responses returns every response received for id, in order.
func (h *responseStubHandler) Responses(id string) []map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.responses[id]
}
