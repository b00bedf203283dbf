package logging_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/heroku/color"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"github.com/kitforge/kitforge/pkg/logging"
	h "github.com/kitforge/kitforge/testhelpers"
)

func TestLogWithWriters(t *testing.T) {
	color.Disable(true)
	defer color.Disable(false)
	spec.Run(t, "logWithWriters", testLogWithWriters, spec.Parallel(), spec.Report(report.Terminal{}))
}

func testLogWithWriters(t *testing.T, when spec.G, it spec.S) {
	var (
		logger         *logging.LogWithWriters
		outBuf, errBuf bytes.Buffer
	)

	it.Before(func() {
		outBuf = bytes.Buffer{}
		errBuf = bytes.Buffer{}
		logger = logging.NewLogWithWriters(&outBuf, &errBuf)
	})

	when("default level", func() {
		it("writes info to the out writer", func() {
			logger.Info("oh hai")
			h.AssertEq(t, outBuf.String(), "oh hai\n")
		})

		it("formats info entries", func() {
			logger.Infof("oh %s", "hai")
			h.AssertEq(t, outBuf.String(), "oh hai\n")
		})

		it("suppresses debug entries", func() {
			logger.Debug("hush")
			h.AssertEq(t, outBuf.String(), "")
		})

		it("prefixes warnings", func() {
			logger.Warn("careful")
			h.AssertEq(t, outBuf.String(), "Warning: careful\n")
		})

		it("routes errors to the error writer with a prefix", func() {
			logger.Error("boom")
			h.AssertEq(t, outBuf.String(), "")
			h.AssertEq(t, errBuf.String(), "ERROR: boom\n")
		})

		it("is not verbose", func() {
			h.AssertEq(t, logger.IsVerbose(), false)
		})
	})

	when("#WantVerbose", func() {
		it("emits debug entries", func() {
			logger.WantVerbose(true)
			logger.Debug("spill it")
			h.AssertEq(t, outBuf.String(), "spill it\n")
			h.AssertEq(t, logger.IsVerbose(), true)
		})
	})

	when("#WantQuiet", func() {
		it("suppresses info entries", func() {
			logger.WantQuiet(true)
			logger.Info("nope")
			logger.Warn("still here")
			h.AssertEq(t, outBuf.String(), "Warning: still here\n")
		})
	})

	when("#WantTime", func() {
		it("prefixes entries with a timestamp", func() {
			clock := func() time.Time {
				return time.Date(2019, 6, 30, 23, 59, 59, 0, time.UTC)
			}
			logger = logging.NewLogWithWriters(&outBuf, &errBuf, logging.WithClock(clock))
			logger.WantTime(true)

			logger.Info("tick")

			h.AssertEq(t, outBuf.String(), "2019/06/30 23:59:59.000000 tick\n")
		})
	})

	when("#Writer", func() {
		it("returns the raw out writer", func() {
			_, err := logger.Writer().Write([]byte("raw"))
			h.AssertNil(t, err)
			h.AssertEq(t, outBuf.String(), "raw")
		})
	})
}
