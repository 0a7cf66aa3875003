// Package testutil provides helpers for integration tests: an in-process
// coordinator wired to a scripted completion provider, so suites run without
// credentials or network access.
package testutil

import (
	"context"
	"net/http/httptest"
	"os"

	"github.com/cloudwego/eino/schema"

	"github.com/tabcoach/tabcoach/internal/event"
	"github.com/tabcoach/tabcoach/internal/provider"
	"github.com/tabcoach/tabcoach/internal/server"
	"github.com/tabcoach/tabcoach/internal/session"
	"github.com/tabcoach/tabcoach/internal/settings"
	"github.com/tabcoach/tabcoach/internal/storage"
	"github.com/tabcoach/tabcoach/internal/tabstate"
	"github.com/tabcoach/tabcoach/pkg/types"
)

// ScriptedProvider streams a fixed reply regardless of the request.
type ScriptedProvider struct {
	Chunks []string
}

// ID returns the provider identifier.
func (p *ScriptedProvider) ID() string { return "scripted" }

// Name returns the human-readable provider name.
func (p *ScriptedProvider) Name() string { return "Scripted" }

// Models returns the list of known models.
func (p *ScriptedProvider) Models() []provider.Model { return nil }

// CreateCompletion creates a streaming completion of the scripted chunks.
func (p *ScriptedProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	sr, sw := schema.Pipe[*schema.Message](len(p.Chunks))
	go func() {
		defer sw.Close()
		for _, c := range p.Chunks {
			if sw.Send(schema.AssistantMessage(c, nil), nil) {
				return
			}
		}
	}()
	return provider.NewCompletionStream(sr), nil
}

type scriptedFactory struct {
	prov provider.Provider
}

func (f *scriptedFactory) ForSettings(ctx context.Context, s types.Settings) (provider.Provider, error) {
	return f.prov, nil
}

// TestServer bundles a running coordinator and its collaborators.
type TestServer struct {
	URL  string
	Tabs *tabstate.Service
	Bus  *event.Bus

	http     *httptest.Server
	stateDir string
}

// StartTestServer starts an in-process coordinator over a throwaway state
// directory, answering every chat with the scripted chunks.
func StartTestServer(chunks []string) (*TestServer, error) {
	stateDir, err := os.MkdirTemp("", "tabcoach-citest-*")
	if err != nil {
		return nil, err
	}

	store := storage.New(stateDir)
	bus := event.NewBus()

	settingsSvc := settings.NewService(store, bus)
	key := "sk-citest"
	if _, err := settingsSvc.Save(context.Background(), types.SettingsPatch{APIKey: &key}); err != nil {
		bus.Close()
		os.RemoveAll(stateDir)
		return nil, err
	}

	tabs := tabstate.NewService(store, bus)
	sessions := session.NewManager(tabs, settingsSvc, &scriptedFactory{prov: &ScriptedProvider{Chunks: chunks}}, bus)

	srv := server.New(server.DefaultConfig(), settingsSvc, tabs, sessions, bus)
	ts := httptest.NewServer(srv.Router())

	return &TestServer{
		URL:      ts.URL,
		Tabs:     tabs,
		Bus:      bus,
		http:     ts,
		stateDir: stateDir,
	}, nil
}

// Stop tears down the server and its state directory.
func (s *TestServer) Stop() {
	s.http.Close()
	s.Bus.Close()
	os.RemoveAll(s.stateDir)
}
