package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"ec2manager/internal/config"
	"ec2manager/internal/fleet"
	"ec2manager/internal/version"
)

// fakeEC2 implements awsec2.API for handler tests.
type fakeEC2 struct {
	describeErr error
	startErr    error
	stopErr     error

	startedIDs []string
	stoppedIDs []string
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{
			Instances: []ec2types.Instance{{
				InstanceId: aws.String("i-0123456789abcdef0"),
				State:      &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
			}},
		}},
	}, nil
}

func (f *fakeEC2) StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.startedIDs = append(f.startedIDs, params.InstanceIds...)
	return &ec2.StartInstancesOutput{}, nil
}

func (f *fakeEC2) StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	f.stoppedIDs = append(f.stoppedIDs, params.InstanceIds...)
	return &ec2.StopInstancesOutput{}, nil
}

func (f *fakeEC2) CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	return &ec2.CreateTagsOutput{}, nil
}

func (f *fakeEC2) DeleteTags(ctx context.Context, params *ec2.DeleteTagsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteTagsOutput, error) {
	return &ec2.DeleteTagsOutput{}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Host:      "127.0.0.1",
		Port:      5000,
		StaticDir: t.TempDir(),
		Instances: []config.Instance{
			{ID: "i-0123456789abcdef0", Name: "vpn-frankfurt", Country: "de"},
			{ID: "i-example-demo", Name: "demo-box", Country: "us"},
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, api *fakeEC2) *Server {
	t.Helper()
	s, err := New(cfg, fleet.NewService(api, cfg.Instances), nil, version.Info{Version: "test"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestListInstances(t *testing.T) {
	s := newTestServer(t, testConfig(t), &fakeEC2{})

	req := httptest.NewRequest(http.MethodGet, "/api/instances", nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp InstanceListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Instances) != 2 {
		t.Fatalf("len(Instances) = %d, want 2", len(resp.Instances))
	}
	if resp.Instances[0].State != "running" {
		t.Errorf("first instance state = %q, want running", resp.Instances[0].State)
	}
	if resp.Instances[1].State != "stopped" {
		t.Errorf("demo instance state = %q, want simulated stopped", resp.Instances[1].State)
	}
}

func TestListInstancesDegradesWithoutAWS(t *testing.T) {
	s := newTestServer(t, testConfig(t), &fakeEC2{describeErr: errors.New("no credentials")})

	req := httptest.NewRequest(http.MethodGet, "/api/instances", nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when AWS is down", w.Code)
	}

	var resp InstanceListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, inst := range resp.Instances {
		if inst.State != "stopped" {
			t.Errorf("instance %s state = %q, want stopped", inst.ID, inst.State)
		}
	}
}

func TestListInstancesMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, testConfig(t), &fakeEC2{})

	req := httptest.NewRequest(http.MethodPost, "/api/instances", nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestStartInstance(t *testing.T) {
	api := &fakeEC2{}
	s := newTestServer(t, testConfig(t), api)

	body := bytes.NewBufferString(`{"hours": 4}`)
	req := httptest.NewRequest(http.MethodPost, "/api/instances/i-0123456789abcdef0/start", body)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var resp ActionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("Status = %q, want success", resp.Status)
	}
	if resp.InstanceID != "i-0123456789abcdef0" {
		t.Errorf("InstanceID = %q", resp.InstanceID)
	}
	if resp.OverrideUntil == "" {
		t.Error("OverrideUntil should be set")
	}
	if _, err := fleet.ParseOverride(resp.OverrideUntil); err != nil {
		t.Errorf("OverrideUntil %q is not a valid override value: %v", resp.OverrideUntil, err)
	}
	if len(api.startedIDs) != 1 {
		t.Errorf("startedIDs = %v, want one start", api.startedIDs)
	}
}

func TestStartInstanceDefaultsHours(t *testing.T) {
	api := &fakeEC2{}
	s := newTestServer(t, testConfig(t), api)

	// No body at all: the 3 hour default applies.
	req := httptest.NewRequest(http.MethodPost, "/api/instances/i-0123456789abcdef0/start", nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if len(api.startedIDs) != 1 {
		t.Errorf("startedIDs = %v, want one start", api.startedIDs)
	}
}

func TestStartInstanceValidation(t *testing.T) {
	tests := []struct {
		name       string
		instanceID string
		body       string
		wantStatus int
	}{
		{"not allow-listed", "i-deadbeefdeadbeef0", `{"hours": 3}`, http.StatusForbidden},
		{"hours too low", "i-0123456789abcdef0", `{"hours": 0}`, http.StatusBadRequest},
		{"hours too high", "i-0123456789abcdef0", `{"hours": 9}`, http.StatusBadRequest},
		{"malformed body", "i-0123456789abcdef0", `{"hours": "three"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeEC2{}
			s := newTestServer(t, testConfig(t), api)

			body := bytes.NewBufferString(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/instances/"+tt.instanceID+"/start", body)
			w := httptest.NewRecorder()
			s.Routes().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if len(api.startedIDs) != 0 {
				t.Errorf("no instance should have been started, got %v", api.startedIDs)
			}

			var errResp map[string]string
			if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
				t.Fatalf("error responses must be JSON: %v", err)
			}
			if errResp["detail"] == "" {
				t.Error("error responses must carry a detail message")
			}
		})
	}
}

func TestStartInstanceAWSFailure(t *testing.T) {
	api := &fakeEC2{startErr: errors.New("UnauthorizedOperation: not allowed")}
	s := newTestServer(t, testConfig(t), api)

	req := httptest.NewRequest(http.MethodPost, "/api/instances/i-0123456789abcdef0/start", nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	// Raw AWS errors must not leak to clients.
	if bytes.Contains(w.Body.Bytes(), []byte("UnauthorizedOperation")) {
		t.Errorf("response leaked AWS error details: %s", w.Body.String())
	}
}

func TestStopInstance(t *testing.T) {
	api := &fakeEC2{}
	s := newTestServer(t, testConfig(t), api)

	req := httptest.NewRequest(http.MethodPost, "/api/instances/i-0123456789abcdef0/stop", nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var resp ActionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("Status = %q, want success", resp.Status)
	}
	if len(api.stoppedIDs) != 1 {
		t.Errorf("stoppedIDs = %v, want one stop", api.stoppedIDs)
	}
}

func TestStopInstanceNotAllowListed(t *testing.T) {
	s := newTestServer(t, testConfig(t), &fakeEC2{})

	req := httptest.NewRequest(http.MethodPost, "/api/instances/i-deadbeefdeadbeef0/stop", nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestInstanceActionRouting(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"unknown action", http.MethodPost, "/api/instances/i-0123456789abcdef0/restart", http.StatusNotFound},
		{"missing action", http.MethodPost, "/api/instances/i-0123456789abcdef0", http.StatusNotFound},
		{"GET on action", http.MethodGet, "/api/instances/i-0123456789abcdef0/start", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(t), &fakeEC2{})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			s.Routes().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
