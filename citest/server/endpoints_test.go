package server_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tabcoach/tabcoach/pkg/types"
)

var _ = Describe("Coordinator Endpoints", func() {
	Describe("GET /health", func() {
		It("reports the server as healthy", func() {
			status, envelope, err := testServer.Do(http.MethodGet, "/health", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(envelope.OK()).To(BeTrue())
		})
	})

	Describe("GET /providers", func() {
		It("lists the supported providers with their models", func() {
			status, envelope, err := testServer.Do(http.MethodGet, "/providers", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var providers []struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				Models []struct {
					ID string `json:"id"`
				} `json:"models"`
			}
			Expect(envelope.Field("providers", &providers)).To(Succeed())
			Expect(providers).To(HaveLen(2))
			Expect(providers[0].ID).To(Equal("openai"))
			Expect(providers[0].Models).NotTo(BeEmpty())
			Expect(providers[1].ID).To(Equal("anthropic"))
		})
	})

	Describe("Settings Endpoints", func() {
		It("redacts the credential on read", func() {
			status, envelope, err := testServer.Do(http.MethodGet, "/settings", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var settings map[string]any
			Expect(envelope.Field("settings", &settings)).To(Succeed())
			Expect(settings).To(HaveKeyWithValue("hasApiKey", true))
			Expect(settings).NotTo(HaveKey("apiKey"))
		})

		It("applies a patch and normalizes out-of-range values", func() {
			style := "socratic"
			temp := 7.5
			status, envelope, err := testServer.Do(http.MethodPatch, "/settings", types.SettingsPatch{
				CoachingStyle: &style,
				Temperature:   &temp,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var settings map[string]any
			Expect(envelope.Field("settings", &settings)).To(Succeed())
			Expect(settings).To(HaveKeyWithValue("coachingStyle", "socratic"))
			Expect(settings).To(HaveKeyWithValue("temperature", 1.0))
		})

		It("rejects a malformed body", func() {
			status, envelope, err := testServer.Do(http.MethodPatch, "/settings", "not an object")
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.OK()).To(BeFalse())
		})
	})

	Describe("Tab Endpoints", func() {
		const tabID = "citest-tab"

		AfterEach(func() {
			testServer.Do(http.MethodDelete, "/tab/"+tabID, nil)
		})

		It("stores a published context and serves it back as state", func() {
			status, envelope, err := testServer.Do(http.MethodPost, "/tab/"+tabID+"/context", map[string]any{
				"context": types.ProblemContext{
					Site:        types.SiteLeetCode,
					Title:       "Two Sum",
					Description: "Find two numbers adding to target.",
					Confidence:  0.9,
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(envelope.OK()).To(BeTrue())

			status, envelope, err = testServer.Do(http.MethodGet, "/tab/"+tabID+"/state", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var state types.TabState
			Expect(envelope.Field("state", &state)).To(Succeed())
			Expect(state.Context).NotTo(BeNil())
			Expect(state.Context.Title).To(Equal("Two Sum"))
		})

		It("keeps the latest snapshot and discards blank ones", func() {
			status, envelope, err := testServer.Do(http.MethodPost, "/tab/"+tabID+"/snapshot", map[string]any{
				"codeSnapshot": types.CodeSnapshot{
					Source: types.SourceMonaco,
					Code:   "def solve(): pass",
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(envelope).To(HaveKey("stored"))

			var stored bool
			Expect(envelope.Field("stored", &stored)).To(Succeed())
			Expect(stored).To(BeTrue())

			// A whitespace-only capture is dropped; the earlier snapshot stands.
			_, _, err = testServer.Do(http.MethodPost, "/tab/"+tabID+"/snapshot", map[string]any{
				"codeSnapshot": types.CodeSnapshot{Source: types.SourceTextArea, Code: "   "},
			})
			Expect(err).NotTo(HaveOccurred())

			_, envelope, err = testServer.Do(http.MethodGet, "/tab/"+tabID+"/state", nil)
			Expect(err).NotTo(HaveOccurred())

			var state types.TabState
			Expect(envelope.Field("state", &state)).To(Succeed())
			Expect(state.CodeSnapshot).NotTo(BeNil())
			Expect(state.CodeSnapshot.Code).To(Equal("def solve(): pass"))
		})

		It("clears history on demand", func() {
			status, envelope, err := testServer.Do(http.MethodDelete, "/tab/"+tabID+"/history", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(envelope.OK()).To(BeTrue())

			_, envelope, err = testServer.Do(http.MethodGet, "/tab/"+tabID+"/history", nil)
			Expect(err).NotTo(HaveOccurred())

			var history []types.ChatHistoryItem
			Expect(envelope.Field("history", &history)).To(Succeed())
			Expect(history).To(BeEmpty())
		})

		It("returns 404 for a rescan when no observer is attached", func() {
			status, envelope, err := testServer.Do(http.MethodPost, "/tab/"+tabID+"/rescan", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(envelope.OK()).To(BeFalse())
		})
	})
})
