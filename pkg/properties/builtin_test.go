package properties_test

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/animalet/substvars/pkg/component"
	"github.com/animalet/substvars/pkg/config"
	"github.com/animalet/substvars/pkg/properties"
	"github.com/animalet/substvars/pkg/subst"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Builtins", func() {
	It("should register every built-in type", func() {
		Expect(properties.Builtins().Types()).To(ConsistOf(
			"map", "yaml", "toml", "directory", "env", "vault", "aws",
			"redis", "memcached", "postgres", "mongodb",
		))
	})

	It("should build a map without expanding its values", func() {
		raw := config.RawConfig("values:\n  x1: p1\n  x2: ${x1}\n")
		pc, err := component.Instantiate[subst.PropertyContainer](properties.Builtins(), properties.TypeMap, raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(lookup(pc, "x2")).To(Equal("${x1}"))
		Expect(subst.SubstVars("${x2}", pc)).To(Equal("p1"))
	})

	It("should build file sources", func() {
		dir := GinkgoT().TempDir()
		file := filepath.Join(dir, "app.yaml")
		Expect(os.WriteFile(file, []byte("db:\n  host: localhost\n"), 0o600)).To(Succeed())

		pc, err := component.Instantiate[subst.PropertyContainer](properties.Builtins(), properties.TypeYAML, []byte("path: "+file+"\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(lookup(pc, "db.host")).To(Equal("localhost"))

		pc, err = component.Instantiate[subst.PropertyContainer](properties.Builtins(), properties.TypeDirectory, []byte("dir: "+dir+"\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(pc).To(BeAssignableToTypeOf(&properties.Directory{}))
	})

	It("should build remote clients that connect lazily", func() {
		vault, err := component.Instantiate[subst.PropertyContainer](properties.Builtins(), properties.TypeVault,
			[]byte("address: http://127.0.0.1:1\ntoken: t\npath: secret/data/app\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(vault).To(BeAssignableToTypeOf(&properties.Vault{}))

		secrets, err := component.Instantiate[subst.PropertyContainer](properties.Builtins(), properties.TypeAWS,
			[]byte("region: eu-west-1\nsecret_name: app\naccess_key_id: id\nsecret_access_key: key\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(secrets).To(BeAssignableToTypeOf(&properties.AWSSecrets{}))

		redis, err := component.Instantiate[subst.PropertyContainer](properties.Builtins(), properties.TypeRedis, []byte("address: localhost:6379\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(redis.(*properties.Redis).Close()).To(Succeed())
	})

	It("should report invalid configuration as an instantiation error", func() {
		_, err := properties.Builtins().CreateInstance(properties.TypeYAML, config.RawConfig("{}"))
		Expect(err).To(MatchError(component.ErrInstantiation))
		Expect(err).To(MatchError(ContainSubstring("properties file path is required")))

		_, err = properties.Builtins().CreateInstance(properties.TypeMap, 42)
		Expect(err).To(MatchError(ContainSubstring("unsupported source parameter int")))
	})
})

var _ = Describe("Build", func() {
	var factory *component.Registry

	BeforeEach(func() {
		factory = component.NewRegistry()
	})

	It("should chain bindings in order", func() {
		composite, err := properties.Build([]config.SourceBinding{
			{Type: "map", Name: "first", Config: config.RawConfig("values: {a: first}\n")},
			{Type: "map", Config: config.RawConfig("values: {a: second, b: second}\n")},
		}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(composite.Len()).To(Equal(2))
		Expect(lookup(composite, "a")).To(Equal("first"))
		Expect(lookup(composite, "b")).To(Equal("second"))
	})

	It("should prefer custom types and fall back to the built-ins", func() {
		factory.Register("fixed", func(any) (any, error) {
			return properties.NewMap(map[string]string{"k": "custom"}), nil
		})
		composite, err := properties.Build([]config.SourceBinding{
			{Type: "fixed"},
			{Type: "map", Config: config.RawConfig("values: {k: builtin, other: builtin}\n")},
		}, component.Fallback(factory, properties.Builtins()))
		Expect(err).NotTo(HaveOccurred())
		Expect(lookup(composite, "k")).To(Equal("custom"))
		Expect(lookup(composite, "other")).To(Equal("builtin"))
	})

	It("should close what was built when a later binding fails", func() {
		built := &closingMap{Map: properties.NewMap(nil)}
		factory.Register("closing", func(any) (any, error) { return built, nil })
		factory.Register("broken", func(any) (any, error) { return nil, errors.New("cannot connect") })

		_, err := properties.Build([]config.SourceBinding{{Type: "closing"}, {Type: "broken", Name: "db"}}, factory)
		Expect(err).To(MatchError(ContainSubstring(`failed to build property source "db"`)))
		Expect(err).To(MatchError(component.ErrInstantiation))
		Expect(built.closed).To(BeTrue())
	})

	It("should reject unknown types", func() {
		_, err := properties.Build([]config.SourceBinding{{Type: "carrier-pigeon"}}, nil)
		Expect(err).To(MatchError(component.ErrUnknownType))
	})

	It("should reject instances that are not containers", func() {
		factory.Register("number", func(any) (any, error) { return 42, nil })
		_, err := properties.Build([]config.SourceBinding{{Type: "number"}}, factory)
		Expect(err).To(MatchError(component.ErrIncompatibleType))
	})
})
