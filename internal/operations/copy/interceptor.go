package copy

import (
	"context"
	"maps"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// LoopMarkerTag is written on every target when loop avoidance is on. Its
// value is the source location.
const LoopMarkerTag = "s3copy-source"

func loopCheck(trigger s3types.TriggerType, avoidLoop bool) bool {
	return avoidLoop && trigger == s3types.TriggerEvent
}

// LoopGuard keeps event-driven runs from copying their own output. With
// AvoidLoop set it tags each target with LoopMarkerTag; on event triggers it
// also skips sources that already carry the marker.
func LoopGuard(_ context.Context, req *s3types.CopyRequest) s3types.Decision {
	if !req.AvoidLoop {
		return s3types.ProceedWith(req)
	}
	if loopCheck(req.TriggerType, req.AvoidLoop) {
		if _, ok := req.SourceTags[LoopMarkerTag]; ok {
			return s3types.ShortCircuitWith(&s3types.Outcome{
				Source:   req.Source,
				Target:   req.Target,
				Messages: []string{"source was written by a previous copy; skipped"},
			})
		}
	}

	next := *req
	next.Tags = maps.Clone(req.Tags)
	if next.Tags == nil {
		next.Tags = make(map[string]string, 1)
	}
	next.Tags[LoopMarkerTag] = req.Source.String()
	return s3types.ProceedWith(&next)
}
