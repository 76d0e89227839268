package session

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fmuexplore/internal/model"
	"github.com/san-kum/fmuexplore/internal/params"
)

var _ = Describe("Session lifecycle", func() {
	var (
		s   *Session
		eng *fakeEngine
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		eng = &fakeEngine{}
		s, err = New(model.NewFedbatch(), eng, WithIntervals(20))
		Expect(err).NotTo(HaveOccurred())
	})

	Context("before any run", func() {
		It("refuses to continue", func() {
			_, err := s.Continue(ctx, 1)
			Expect(err).To(MatchError(ErrSequence))
			Expect(eng.reqs).To(BeEmpty())
		})

		It("reports every stateful value as missing", func() {
			for _, v := range s.CurrentState() {
				Expect(params.IsMissing(v)).To(BeTrue())
			}
		})
	})

	Context("after a fresh run", func() {
		BeforeEach(func() {
			_, err := s.Fresh(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
		})

		It("advances the clock to the end of the run", func() {
			Expect(s.Clock()).To(Equal(10.0))
			Expect(s.HasRun()).To(BeTrue())
		})

		It("continues from the clock", func() {
			_, err := s.Continue(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			req := eng.reqs[len(eng.reqs)-1]
			Expect(req.Start).To(Equal(10.0))
			Expect(req.Stop).To(Equal(15.0))
			Expect(req.StartValues).To(HaveKeyWithValue("feedtank.V_start", 10.0))
		})

		It("keeps its state when the engine fails", func() {
			eng.fail = errors.New("diverged")
			_, err := s.Continue(ctx, 5)

			var engErr *EngineError
			Expect(errors.As(err, &engErr)).To(BeTrue())
			Expect(s.Clock()).To(Equal(10.0))
			Expect(s.CurrentState()).To(HaveKeyWithValue("bioreactor.V", 10.0))
		})

		It("starts again from zero on fresh", func() {
			_, err := s.Fresh(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.reqs[len(eng.reqs)-1].Start).To(BeZero())
			Expect(s.Clock()).To(Equal(2.0))
		})
	})
})
