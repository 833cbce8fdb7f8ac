package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/animalet/substvars/pkg/config"
	"github.com/animalet/substvars/pkg/properties"
	"github.com/animalet/substvars/pkg/server"
	"github.com/animalet/substvars/pkg/subst"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type resolveBody struct {
	Resolved  string   `json:"resolved"`
	Undefined []string `json:"undefined"`
	Error     string   `json:"error"`
	Position  *int     `json:"position"`
}

var _ = Describe("Server", func() {
	var srv *server.Server

	BeforeEach(func() {
		sources := properties.NewMap(map[string]string{"x1": "p1", "host": "configured"})
		var err error
		srv, err = server.NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, sources,
			server.WithResolver(subst.New(subst.WithSystemProperties(nil), subst.WithEnvironment(nil))))
		Expect(err).NotTo(HaveOccurred())
	})

	post := func(body string) (*httptest.ResponseRecorder, resolveBody) {
		req := httptest.NewRequest(http.MethodPost, "/resolve", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		var out resolveBody
		Expect(json.Unmarshal(w.Body.Bytes(), &out)).To(Succeed())
		return w, out
	}

	It("should report health", func() {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"status":"ok"}`))
		Expect(w.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
	})

	It("should resolve with request properties first", func() {
		w, out := post(`{"value": "${host}/${x2}/${port:-80}", "properties": {"host": "request", "x2": "${x1}"}}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(out.Resolved).To(Equal("request/p1/80"))
		Expect(out.Undefined).To(BeEmpty())
		Expect(out.Undefined).NotTo(BeNil())
	})

	It("should list undefined keys", func() {
		w, out := post(`{"value": "${a}-${b}"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(out.Resolved).To(Equal("a_IS_UNDEFINED-b_IS_UNDEFINED"))
		Expect(out.Undefined).To(Equal([]string{"a", "b"}))
	})

	It("should accept an empty value", func() {
		w, out := post(`{"value": ""}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(out.Resolved).To(BeEmpty())
	})

	It("should reject malformed references with their position", func() {
		w, out := post(`{"value": "ok ${unterminated"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(out.Error).To(ContainSubstring("has no closing brace"))
		Expect(out.Position).NotTo(BeNil())
		Expect(*out.Position).To(Equal(3))
	})

	It("should reject requests without a value", func() {
		w, out := post(`{"properties": {}}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(out.Error).NotTo(BeEmpty())
	})

	It("should reject invalid JSON", func() {
		w, _ := post(`{"value": `)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should report cycles when recursion is bounded", func() {
		bounded, err := server.NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, nil,
			server.WithResolver(subst.New(subst.WithMaxDepth(8), subst.WithSystemProperties(nil), subst.WithEnvironment(nil))))
		Expect(err).NotTo(HaveOccurred())

		req := httptest.NewRequest(http.MethodPost, "/resolve", strings.NewReader(`{"value": "${a}", "properties": {"a": "${b}", "b": "${a}"}}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		bounded.Handler().ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
	})

	Describe("default resolver", func() {
		postTo := func(s *server.Server, body string) int {
			req := httptest.NewRequest(http.MethodPost, "/resolve", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			return w.Code
		}

		It("should fail self-referencing requests instead of recursing forever", func() {
			plain, err := server.NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(postTo(plain, `{"value": "${a}", "properties": {"a": "${a}"}}`)).To(Equal(http.StatusUnprocessableEntity))
			Expect(postTo(plain, `{"value": "${a}", "properties": {"a": "${b}", "b": "${a}"}}`)).To(Equal(http.StatusUnprocessableEntity))
		})

		It("should honour the configured depth", func() {
			chain := `{"value": "${a}", "properties": {"a": "${b}", "b": "${c}", "c": "v"}}`

			shallow, err := server.NewServer(config.ServerConfig{Address: "127.0.0.1:0", MaxDepth: 1}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(postTo(shallow, chain)).To(Equal(http.StatusUnprocessableEntity))

			deep, err := server.NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(postTo(deep, chain)).To(Equal(http.StatusOK))
		})
	})

	It("should refuse an invalid configuration", func() {
		_, err := server.NewServer(config.ServerConfig{}, nil)
		Expect(err).To(MatchError(ContainSubstring("server configuration is invalid")))
	})

	Describe("lifecycle", func() {
		It("should serve until shut down and then run the hooks", func() {
			hookRan := false
			srv.AddShutdownHook(func() error {
				hookRan = true
				return errors.New("ignored")
			})

			Expect(srv.Start()).To(Succeed())
			Expect(srv.Start()).To(MatchError(ContainSubstring("already started")))
			Expect(srv.Addr()).NotTo(HaveSuffix(":0"))

			Eventually(func() (int, error) {
				resp, err := http.Get("http://" + srv.Addr() + "/health")
				if err != nil {
					return 0, err
				}
				defer resp.Body.Close()
				return resp.StatusCode, nil
			}).WithTimeout(5 * time.Second).Should(Equal(http.StatusOK))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(srv.Shutdown(ctx)).To(Succeed())
			Expect(hookRan).To(BeTrue())

			_, err := http.Get("http://" + srv.Addr() + "/health")
			Expect(err).To(HaveOccurred())
		})

		It("should fail to start on an unusable address", func() {
			bad, err := server.NewServer(config.ServerConfig{Address: "256.0.0.1:80"}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(bad.Start()).To(HaveOccurred())
		})

		It("should shut down cleanly when never started", func() {
			Expect(srv.Shutdown(context.Background())).To(Succeed())
		})
	})

	It("should toggle debug mode", func() {
		server.SetDebug(true)
		Expect(server.GetDebug()).To(BeTrue())
		server.SetDebug(false)
		Expect(server.GetDebug()).To(BeFalse())
	})
})
