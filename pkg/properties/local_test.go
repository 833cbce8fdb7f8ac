package properties_test

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/animalet/substvars/pkg/properties"
	"github.com/animalet/substvars/pkg/subst"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type closingMap struct {
	*properties.Map
	closed bool
	err    error
}

func (c *closingMap) Close() error {
	c.closed = true
	return c.err
}

var _ = Describe("Local containers", func() {
	Describe("Map", func() {
		It("should be detached from its input", func() {
			values := map[string]string{"a": "1"}
			m := properties.NewMap(values)
			values["a"] = "changed"
			values["b"] = "2"

			Expect(lookup(m, "a")).To(Equal("1"))
			_, ok := m.Property("b")
			Expect(ok).To(BeFalse())
			Expect(m.Len()).To(Equal(1))
		})

		It("should report empty values as present", func() {
			v, ok := properties.NewMap(map[string]string{"empty": ""}).Property("empty")
			Expect(ok).To(BeTrue())
			Expect(v).To(BeEmpty())
		})

		It("should list keys in order", func() {
			Expect(properties.NewMap(map[string]string{"b": "", "a": ""}).Keys()).To(Equal([]string{"a", "b"}))
		})

		It("should work from a nil map", func() {
			_, ok := properties.NewMap(nil).Property("a")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Composite", func() {
		It("should answer from the first item holding the key", func() {
			c := properties.NewComposite(
				properties.NewMap(map[string]string{"a": "first"}),
				nil,
				properties.NewMap(map[string]string{"a": "second", "b": "second"}),
			)
			Expect(c.Len()).To(Equal(2))
			Expect(lookup(c, "a")).To(Equal("first"))
			Expect(lookup(c, "b")).To(Equal("second"))
			_, ok := c.Property("c")
			Expect(ok).To(BeFalse())
		})

		It("should close closable items and collect failures", func() {
			ok := &closingMap{Map: properties.NewMap(nil)}
			failing := &closingMap{Map: properties.NewMap(nil), err: errors.New("boom")}
			c := properties.NewComposite(ok, properties.NewMap(nil), failing)

			err := c.Close()
			Expect(err).To(MatchError(ContainSubstring("boom")))
			Expect(ok.closed).To(BeTrue())
			Expect(failing.closed).To(BeTrue())
		})

		It("should plug into the resolver", func() {
			c := properties.NewComposite(properties.NewMap(map[string]string{"x1": "p1", "x2": "${x1}"}))
			Expect(subst.SubstVars("Hello ${x2}", c)).To(Equal("Hello p1"))
		})
	})

	Describe("Environment", func() {
		BeforeEach(func() {
			Expect(os.Setenv("PROPS_TEST_HOST", "env-host")).To(Succeed())
			DeferCleanup(os.Unsetenv, "PROPS_TEST_HOST")
		})

		It("should read variables", func() {
			Expect(lookup(properties.NewEnvironment(properties.EnvironmentOptions{}), "PROPS_TEST_HOST")).To(Equal("env-host"))
		})

		It("should apply the prefix", func() {
			env := properties.NewEnvironment(properties.EnvironmentOptions{Prefix: "PROPS_TEST_"})
			Expect(lookup(env, "HOST")).To(Equal("env-host"))
		})

		It("should hide keys the predicate rejects", func() {
			env, err := properties.EnvironmentConfig{Allow: []string{"OTHER"}}.CreateClient()
			Expect(err).NotTo(HaveOccurred())
			_, ok := env.Property("PROPS_TEST_HOST")
			Expect(ok).To(BeFalse())
		})

		It("should reject prefixes holding '='", func() {
			Expect(properties.EnvironmentConfig{Prefix: "A="}.Validate()).NotTo(Succeed())
		})
	})

	Describe("Documents", func() {
		It("should flatten YAML", func() {
			m, err := properties.ParseYAML([]byte(`
db:
  host: localhost
  port: 5432
  ratio: 0.5
  enabled: true
  hosts: [a, b]
  empty:
name: app
`))
			Expect(err).NotTo(HaveOccurred())
			Expect(lookup(m, "db.host")).To(Equal("localhost"))
			Expect(lookup(m, "db.port")).To(Equal("5432"))
			Expect(lookup(m, "db.ratio")).To(Equal("0.5"))
			Expect(lookup(m, "db.enabled")).To(Equal("true"))
			Expect(lookup(m, "db.hosts.1")).To(Equal("b"))
			Expect(lookup(m, "name")).To(Equal("app"))
			v, ok := m.Property("db.empty")
			Expect(ok).To(BeTrue())
			Expect(v).To(BeEmpty())
		})

		It("should flatten TOML", func() {
			m, err := properties.ParseTOML([]byte(`
name = "app"

[db]
host = "localhost"
port = 5432
hosts = ["a", "b"]
`))
			Expect(err).NotTo(HaveOccurred())
			Expect(lookup(m, "name")).To(Equal("app"))
			Expect(lookup(m, "db.host")).To(Equal("localhost"))
			Expect(lookup(m, "db.port")).To(Equal("5432"))
			Expect(lookup(m, "db.hosts.0")).To(Equal("a"))
		})

		It("should accept empty documents", func() {
			m, err := properties.ParseYAML(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Len()).To(BeZero())
		})

		It("should reject broken documents", func() {
			_, err := properties.ParseYAML([]byte("a: [b"))
			Expect(err).To(HaveOccurred())
			_, err = properties.ParseTOML([]byte("a = "))
			Expect(err).To(HaveOccurred())
		})

		It("should read files", func() {
			dir := GinkgoT().TempDir()
			yamlFile := filepath.Join(dir, "p.yaml")
			tomlFile := filepath.Join(dir, "p.toml")
			Expect(os.WriteFile(yamlFile, []byte("a: 1\n"), 0o600)).To(Succeed())
			Expect(os.WriteFile(tomlFile, []byte("a = 2\n"), 0o600)).To(Succeed())

			y, err := properties.YAMLFile(yamlFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(lookup(y, "a")).To(Equal("1"))

			t, err := properties.TOMLFile(tomlFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(lookup(t, "a")).To(Equal("2"))

			_, err = properties.YAMLFile(filepath.Join(dir, "missing.yaml"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Directory", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
			Expect(os.WriteFile(filepath.Join(dir, "db_password"), []byte("  s3cret\n"), 0o600)).To(Succeed())
			Expect(os.Mkdir(filepath.Join(dir, "nested"), 0o700)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "nested", "token"), []byte("t"), 0o600)).To(Succeed())
		})

		It("should read trimmed file contents", func() {
			d, err := properties.DirectoryConfig{Dir: dir}.CreateClient()
			Expect(err).NotTo(HaveOccurred())
			Expect(lookup(d, "db_password")).To(Equal("s3cret"))
			Expect(lookup(d, "nested/token")).To(Equal("t"))
		})

		DescribeTable("should treat unsafe or missing keys as absent",
			func(key string) {
				d, err := properties.NewDirectory(dir)
				Expect(err).NotTo(HaveOccurred())
				_, ok := d.Property(key)
				Expect(ok).To(BeFalse())
			},
			Entry("missing", "nope"),
			Entry("empty", ""),
			Entry("absolute", "/etc/passwd"),
			Entry("traversal", "../outside"),
			Entry("directory itself", "."),
			Entry("a directory", "nested"),
		)

		It("should validate the directory", func() {
			Expect(properties.DirectoryConfig{}.Validate()).NotTo(Succeed())
			Expect(properties.DirectoryConfig{Dir: filepath.Join(dir, "missing")}.Validate()).To(MatchError(ContainSubstring("does not exist")))
			Expect(properties.DirectoryConfig{Dir: filepath.Join(dir, "db_password")}.Validate()).To(MatchError(ContainSubstring("is not a directory")))
			Expect(properties.DirectoryConfig{Dir: dir}.Validate()).To(Succeed())
		})

		It("should refuse an empty directory name", func() {
			_, err := properties.NewDirectory("")
			Expect(err).To(HaveOccurred())
		})
	})
})
