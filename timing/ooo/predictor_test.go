package ooo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbsim/timing/ooo"
)

var _ = Describe("Predictor", func() {
	It("should never predict taken under the untaken policy", func() {
		p := ooo.NewPredictor(ooo.PolicyAlwaysUntaken, ooo.DefaultPredictorConfig())
		Expect(p.Predict(0x100).Taken).To(BeFalse())

		p.Update(0x100, true, 0x200)
		Expect(p.Predict(0x100).Taken).To(BeFalse())
		Expect(p.Stats().Mispredictions).To(Equal(uint64(1)))
	})

	It("should always predict taken under the taken policy", func() {
		p := ooo.NewPredictor(ooo.PolicyAlwaysTaken, ooo.DefaultPredictorConfig())
		Expect(p.Predict(0x100).Taken).To(BeTrue())

		p.Update(0x100, true, 0x200)
		Expect(p.Stats().Correct).To(Equal(uint64(1)))
		Expect(p.Stats().Predictions).To(Equal(uint64(1)))
	})

	Describe("bimodal", func() {
		var p ooo.Predictor

		BeforeEach(func() {
			p = ooo.NewPredictor(ooo.PolicyBimodal, ooo.PredictorConfig{BHTSize: 16, BTBSize: 16})
		})

		It("should start weakly taken", func() {
			Expect(p.Predict(0x40).Taken).To(BeTrue())
		})

		It("should learn a not-taken branch", func() {
			p.Update(0x40, false, 0)
			Expect(p.Predict(0x40).Taken).To(BeFalse())
			p.Update(0x40, false, 0)
			p.Update(0x40, true, 0x80)
			Expect(p.Predict(0x40).Taken).To(BeFalse())
		})

		It("should remember taken targets", func() {
			first := p.Predict(0x40)
			Expect(first.TargetKnown).To(BeFalse())

			p.Update(0x40, true, 0x80)
			pred := p.Predict(0x40)
			Expect(pred.TargetKnown).To(BeTrue())
			Expect(pred.Target).To(Equal(uint32(0x80)))
			Expect(p.Stats().BTBHitRate()).To(BeNumerically("~", 50.0))
		})

		It("should keep branches at different halfwords apart", func() {
			p.Update(0x40, false, 0)
			p.Update(0x40, false, 0)
			Expect(p.Predict(0x42).Taken).To(BeTrue())
		})

		It("should forget everything on reset", func() {
			p.Update(0x40, false, 0)
			p.Update(0x40, false, 0)
			p.Reset()
			Expect(p.Predict(0x40).Taken).To(BeTrue())
			Expect(p.Stats().Mispredictions).To(Equal(uint64(0)))
		})
	})

	DescribeTable("policy names",
		func(name string, policy ooo.Policy) {
			parsed, err := ooo.ParsePolicy(name)
			Expect(err).ToNot(HaveOccurred())
			Expect(parsed).To(Equal(policy))
			Expect(policy.String()).To(Equal(name))
		},
		Entry("untaken", "untaken", ooo.PolicyAlwaysUntaken),
		Entry("taken", "taken", ooo.PolicyAlwaysTaken),
		Entry("bimodal", "bimodal", ooo.PolicyBimodal),
	)

	It("should reject unknown policies", func() {
		_, err := ooo.ParsePolicy("oracle")
		Expect(err).To(HaveOccurred())
	})
})
