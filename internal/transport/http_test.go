package transport_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/internal/config"
	"github.com/ovsenv/ovsenv/internal/transport"
)

func startServer() *http.Server {
	getResponse := func(w http.ResponseWriter) {
		data := map[string]string{
			"status": "OK",
		}
		resBytes, _ := json.Marshal(data)
		fmt.Fprintf(w, "%s", resBytes)
	}
	port, err := getFreePort()
	if err != nil {
		log.Fatal("cannot get free port")
	}

	mux := http.NewServeMux()

	mux.HandleFunc(fmt.Sprintf("/%v/test/401/out", ovsenv.PathPrefix), func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		getResponse(w)
	})

	mux.HandleFunc(fmt.Sprintf("/%v/test/500/out", ovsenv.PathPrefix), func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		getResponse(w)
	})

	mux.HandleFunc(fmt.Sprintf("/%v/test/200/out", ovsenv.PathPrefix), func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		getResponse(w)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", port),
		Handler: mux,
	}

	go func() {
		// The error is always non-nil because the server gets shut down.
		_ = srv.ListenAndServe()
	}()
	return srv
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func TestTx(t *testing.T) {
	srv := startServer()
	defer func() {
		err := srv.Shutdown(context.Background())
		if err != nil {
			log.Fatal("cannot stop server: ", err)
		}
	}()
	server := srv.Addr
	freePort, err := getFreePort()
	if err != nil {
		t.Fatalf("cannot get free port: %v", err)
	}

	config.DefaultConfig.HTTPRetries = 0
	config.DefaultConfig.HTTPTimeout = 5 * time.Second

	tests := []struct {
		description string
		server      string
		client      string
		wantCode    int
		wantErr     bool
		wantBody    []byte
	}{
		{
			description: "unreachable server",
			server:      fmt.Sprintf("localhost:%d", freePort),
			client:      "200",
			wantCode:    transport.TxResponseErr,
			wantErr:     true,
		},
		{
			description: "success response",
			server:      server,
			client:      "200",
			wantCode:    transport.TxResponseOK,
			wantErr:     false,
			wantBody:    []byte(`{"status":"OK"}`),
		},
		{
			description: "unauthorized response",
			server:      server,
			client:      "401",
			wantCode:    transport.TxResponseErr,
			wantErr:     true,
			wantBody:    []byte(`{"status":"OK"}`),
		},
		{
			description: "server error response",
			server:      server,
			client:      "500",
			wantCode:    transport.TxResponseErr,
			wantErr:     true,
			wantBody:    []byte(`{"status":"OK"}`),
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			httpTransport, err := transport.NewHTTPTransport(test.client, test.server, nil, "test", time.Second)
			if err != nil {
				t.Fatalf("cannot create transport: %v", err)
			}

			code, metadata, data, err := httpTransport.Tx("test", nil, []byte("test"))

			gotErr := err != nil
			if !cmp.Equal(gotErr, test.wantErr) {
				t.Errorf("%#v != %#v (%v)", gotErr, test.wantErr, err)
			}

			if !cmp.Equal(code, test.wantCode) {
				t.Errorf("%#v != %#v", code, test.wantCode)
			}

			if !cmp.Equal(data, test.wantBody) {
				t.Errorf("%#v != %#v", string(data), string(test.wantBody))
			}

			if test.wantCode == transport.TxResponseOK && len(metadata) == 0 {
				t.Error("metadata should not be empty")
			}
		})
	}
}

func TestConnectPollsControlChannelOnly(t *testing.T) {
	port, err := getFreePort()
	if err != nil {
		t.Fatalf("cannot get free port: %v", err)
	}

	var mu sync.Mutex
	var paths []string
	srv := &http.Server{
		Addr: fmt.Sprintf("localhost:%d", port),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			mu.Lock()
			paths = append(paths, req.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}),
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			t.Fatalf("cannot stop server: %v", err)
		}
	}()

	config.DefaultConfig.HTTPRetries = 0
	config.DefaultConfig.HTTPTimeout = 5 * time.Second

	httpTransport, err := transport.NewHTTPTransport("test", srv.Addr, nil, "test", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("cannot create transport: %v", err)
	}

	if err := httpTransport.Connect(); err != nil {
		t.Fatalf("cannot connect transport: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	httpTransport.Disconnect(0)

	mu.Lock()
	defer mu.Unlock()

	if len(paths) == 0 {
		t.Fatal("no poll requests received")
	}
	want := fmt.Sprintf("/%v/control/test/in", ovsenv.PathPrefix)
	for _, path := range paths {
		if strings.Contains(path, "/data/") {
			t.Errorf("polled data channel: %v", path)
		}
		if path != want {
			t.Errorf("%#v != %#v", path, want)
		}
	}
}
