// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package e2e_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/stacklok/hello-otel/test/e2e"
)

const (
	stopTimeout   = 20 * time.Second
	exportTimeout = 10 * time.Second
)

// otelEnvKeys are cleared before each test so the host environment cannot leak in.
var otelEnvKeys = []string{
	"OTEL_SERVICE_NAME",
	"OTEL_EXPORTER_OTLP_PROTOCOL",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
	"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT",
	"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT",
	"OTEL_EXPORTER_OTLP_HEADERS",
	"OTEL_ENV",
	"OTEL_SDK_DISABLED",
	"OTEL_TRACES_EXPORTER",
	"OTEL_METRICS_EXPORTER",
	"OTEL_LOGS_EXPORTER",
	"OTEL_RESOURCE_ATTRIBUTES",
}

func setEnv(key, value string) {
	Expect(os.Setenv(key, value)).To(Succeed())
}

// useCollector points every exporter at the suite collector over protocol.
func useCollector(serviceName, protocol string) {
	setEnv("OTEL_SERVICE_NAME", serviceName)
	setEnv("OTEL_EXPORTER_OTLP_PROTOCOL", protocol)
	setEnv("OTEL_EXPORTER_OTLP_ENDPOINT", collector.GRPCEndpoint())
	setEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", collector.HTTPEndpoint("/v1/traces"))
	setEnv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", collector.HTTPEndpoint("/v1/logs"))
	setEnv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", collector.HTTPEndpoint("/v1/metrics"))
	setEnv("OTEL_EXPORTER_OTLP_HEADERS", "x-e2e-token=s3cret")
	setEnv("OTEL_ENV", "e2e")
}

func uniqueServiceName(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, os.Getpid(), time.Now().UnixNano())
}

func logsOf(serviceName string) []e2e.LogRecord {
	var out []e2e.LogRecord
	for _, l := range collector.Logs() {
		if l.ServiceName == serviceName {
			out = append(out, l)
		}
	}
	return out
}

func logBodies(serviceName string) []string {
	var out []string
	for _, l := range logsOf(serviceName) {
		out = append(out, l.Body)
	}
	return out
}

var _ = Describe("hello-otel", Label("telemetry", "e2e"), Serial, func() {
	var (
		downstream   *httptest.Server
		traceparents chan string
	)

	BeforeEach(func() {
		collector.Reset()
		for _, key := range otelEnvKeys {
			if value, ok := os.LookupEnv(key); ok {
				DeferCleanup(os.Setenv, key, value)
			} else {
				DeferCleanup(os.Unsetenv, key)
			}
			Expect(os.Unsetenv(key)).To(Succeed())
		}

		traceparents = make(chan string, 16)
		downstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceparents <- r.Header.Get("traceparent")
			w.WriteHeader(http.StatusOK)
		}))
		DeferCleanup(downstream.Close)
	})

	DescribeTable("exports all three signals for /hello",
		func(protocol string) {
			serviceName := uniqueServiceName("hello-otel-e2e")
			useCollector(serviceName, protocol)

			By("Starting the server")
			server, err := e2e.StartServer("--downstream-url", downstream.URL, "--enable-prometheus-metrics-path")
			Expect(err).ToNot(HaveOccurred())

			By("Calling the endpoints")
			status, body, err := server.Get("/")
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(Equal("Hello OTEL! Hit /hello to create spans + logs."))

			status, body, err = server.Get("/hello")
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring(`"message":"hello, otel!"`))

			var traceparent string
			Eventually(traceparents).Should(Receive(&traceparent))

			status, body, err = server.Get("/metrics")
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("hello_otel_requests_total"))

			By("Stopping the server to flush telemetry")
			Expect(server.Stop(stopTimeout)).To(Succeed())

			By("Checking the exported spans")
			var hello e2e.Span
			Eventually(func() bool {
				var ok bool
				hello, ok = collector.SpanNamed("say-hello")
				return ok
			}, exportTimeout).Should(BeTrue())

			Expect(hello.ServiceName).To(Equal(serviceName))
			Expect(hello.Attributes).To(HaveKeyWithValue("hello.tag", "world"))
			Expect(hello.Attributes).To(HaveKeyWithValue("example.status", int64(http.StatusOK)))
			Expect(hello.StatusCode).To(Equal(tracepb.Status_STATUS_CODE_UNSET))

			serverSpan, ok := collector.SpanNamed("GET /hello")
			Expect(ok).To(BeTrue(), "expected a server span named after the route")
			Expect(serverSpan.Kind).To(Equal(tracepb.Span_SPAN_KIND_SERVER))
			Expect(serverSpan.Attributes).To(HaveKeyWithValue("http.route", "/hello"))
			Expect(hello.ParentID).To(Equal(serverSpan.SpanID))
			Expect(hello.TraceID).To(Equal(serverSpan.TraceID))

			clients := collector.SpansOfKind(tracepb.Span_SPAN_KIND_CLIENT)
			Expect(clients).To(HaveLen(1))
			Expect(clients[0].ParentID).To(Equal(hello.SpanID))
			Expect(traceparent).To(ContainSubstring(hello.TraceID))

			for _, s := range collector.Spans() {
				Expect(s.Name).ToNot(HavePrefix("GET /health"), "/health is not traced")
				Expect(s.Name).ToNot(HavePrefix("GET /metrics"), "/metrics is not traced")
			}

			By("Checking the exported logs")
			Eventually(func() []string { return logBodies(serviceName) }, exportTimeout).
				Should(ContainElement("Handling /hello"))
			for _, l := range logsOf(serviceName) {
				if l.Body == "Handling /hello" {
					Expect(l.TraceID).To(Equal(hello.TraceID), "the log record is correlated with the request")
					Expect(l.Attributes).To(HaveKey("time"))
				}
			}

			By("Checking the exported metrics")
			Eventually(func() []string { return collector.MetricNames()[serviceName] }, exportTimeout).
				Should(ContainElements("hello_otel_requests", "hello_otel_request_duration", "hello_otel_downstream_calls"))

			By("Checking the exporter headers")
			Expect(collector.Headers()).To(ContainElement(HaveKeyWithValue("x-e2e-token", "s3cret")))
		},
		Entry("over gRPC", "grpc"),
		Entry("over HTTP/protobuf", "http/protobuf"),
	)

	It("records a failed downstream call on the span and in the logs", func() {
		serviceName := uniqueServiceName("hello-otel-e2e-failure")
		useCollector(serviceName, "http/protobuf")

		closed := httptest.NewServer(http.NotFoundHandler())
		closedURL := closed.URL
		closed.Close()

		server, err := e2e.StartServer("--downstream-url", closedURL, "--downstream-timeout", "2s")
		Expect(err).ToNot(HaveOccurred())

		status, _, err := server.Get("/hello")
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK), "the downstream result never changes the response")

		Expect(server.Stop(stopTimeout)).To(Succeed())

		var hello e2e.Span
		Eventually(func() bool {
			var ok bool
			hello, ok = collector.SpanNamed("say-hello")
			return ok
		}, exportTimeout).Should(BeTrue())
		Expect(hello.StatusCode).To(Equal(tracepb.Status_STATUS_CODE_ERROR))
		Expect(hello.Events).To(ContainElement("exception"))
		Expect(hello.Attributes).ToNot(HaveKey("example.status"))

		Eventually(func() []string { return logBodies(serviceName) }, exportTimeout).
			Should(ContainElements("Handling /hello", "Downstream call failed"))
		for _, l := range logsOf(serviceName) {
			if l.Body == "Downstream call failed" {
				Expect(l.Attributes).To(HaveKeyWithValue("url", closedURL))
			}
		}
	})

	It("skips a signal whose exporter is none", func() {
		serviceName := uniqueServiceName("hello-otel-e2e-no-traces")
		useCollector(serviceName, "http/protobuf")
		setEnv("OTEL_TRACES_EXPORTER", "none")

		server, err := e2e.StartServer("--downstream-url", downstream.URL)
		Expect(err).ToNot(HaveOccurred())

		status, _, err := server.Get("/hello")
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))
		Eventually(traceparents).Should(Receive())

		Expect(server.Stop(stopTimeout)).To(Succeed())

		Eventually(func() []string { return logBodies(serviceName) }, exportTimeout).
			Should(ContainElement("Handling /hello"))
		Eventually(func() []string { return collector.MetricNames()[serviceName] }, exportTimeout).
			Should(ContainElement("hello_otel_requests"))
		Consistently(collector.Spans, time.Second).Should(BeEmpty())
	})

	It("does not serve /metrics unless enabled", func() {
		setEnv("OTEL_SDK_DISABLED", "true")

		server, err := e2e.StartServer("--downstream-url", downstream.URL)
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(func() { Expect(server.Stop(stopTimeout)).To(Succeed()) })

		status, body, err := server.Get("/metrics")
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(strings.TrimSpace(body)).To(Equal("404 page not found"))
	})
})
