package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"empathos.app/relay/common/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/openai/openai-go"
)

type composeArgs struct {
	Draft string `json:"draft" jsonschema:"required,description=Finished reply"`
}

var _ = Describe("NewAgentClient", func() {
	It("rejects an empty API key", func() {
		client, err := llm.NewAgentClient(llm.Config{})
		Expect(err).To(MatchError(llm.ErrMissingAPIKey))
		Expect(client).To(BeNil())
	})

	It("rejects an unknown provider", func() {
		_, err := llm.NewAgentClient(llm.Config{Provider: "mystery", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported LLM provider")))
	})

	It("defaults to OpenAI with the configured model", func() {
		client, err := llm.NewAgentClient(llm.Config{APIKey: "k", Model: "gpt-4.1-mini"})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Model()).To(Equal("gpt-4.1-mini"))
	})

	It("builds an Anthropic client with a default model", func() {
		client, err := llm.NewAgentClient(llm.Config{Provider: llm.ProviderAnthropic, APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Model()).NotTo(BeEmpty())
	})
})

var _ = Describe("NewFactory", func() {
	It("falls back to the server key when the caller has none", func() {
		factory := llm.NewFactory(llm.Config{APIKey: "server"})
		client, err := factory("  ")
		Expect(err).NotTo(HaveOccurred())
		Expect(client).NotTo(BeNil())
	})

	It("fails when neither side has a key", func() {
		factory := llm.NewFactory(llm.Config{})
		_, err := factory("")
		Expect(errors.Is(err, llm.ErrMissingAPIKey)).To(BeTrue())
	})
})

var _ = Describe("ParseToolArguments", func() {
	It("decodes arguments into the target type", func() {
		args, err := llm.ParseToolArguments[composeArgs](`{"draft":"Dear customer"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(args.Draft).To(Equal("Dear customer"))
	})

	It("wraps malformed JSON", func() {
		_, err := llm.ParseToolArguments[composeArgs](`{"draft":`)
		Expect(err).To(MatchError(ContainSubstring("parse tool arguments")))
	})
})

var _ = Describe("GenerateSchema", func() {
	It("inlines properties and required fields", func() {
		data, err := json.Marshal(llm.GenerateSchema[composeArgs]())
		Expect(err).NotTo(HaveOccurred())

		var schema map[string]any
		Expect(json.Unmarshal(data, &schema)).To(Succeed())
		Expect(schema["type"]).To(Equal("object"))
		Expect(schema["properties"]).To(HaveKey("draft"))
		Expect(schema["required"]).To(ConsistOf("draft"))
		Expect(schema["additionalProperties"]).To(BeFalse())
	})
})

var _ = Describe("Classify", func() {
	DescribeTable("labels collaborator failures",
		func(err error, expected string) {
			Expect(llm.Classify(err)).To(Equal(expected))
		},
		Entry("nil", nil, ""),
		Entry("canceled", fmt.Errorf("openai chat: %w", context.Canceled), llm.ErrorClassCanceled),
		Entry("deadline", context.DeadlineExceeded, llm.ErrorClassCanceled),
		Entry("rate limited", &openai.Error{StatusCode: 429}, llm.ErrorClassRateLimited),
		Entry("server", &openai.Error{StatusCode: 503}, llm.ErrorClassServer),
		Entry("client", &openai.Error{StatusCode: 401}, llm.ErrorClassClient),
		Entry("network", errors.New("dial tcp: connection refused"), llm.ErrorClassNetwork),
	)
})
