package viper

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Shared configuration instance", func() {
	When("the instance has not been created yet", func() {
		It("should be created on first use", func() {
			cfg = nil
			Expect(Instance()).ToNot(BeNil())
			Expect(cfg).ToNot(BeNil())
		})
	})

	When("values are set through the instance", func() {
		It("should surface them on subsequent calls", func() {
			Instance().Set("registry", "quay.io/org")
			Expect(Instance().GetString("registry")).To(Equal("quay.io/org"))
		})
	})
})
