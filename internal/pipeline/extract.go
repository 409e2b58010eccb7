package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/paperhold/docvault/constants"
	"github.com/paperhold/docvault/internal/cache"
	"github.com/paperhold/docvault/internal/common"
	"github.com/paperhold/docvault/internal/docproc"
	"github.com/paperhold/docvault/internal/entity"
	"github.com/paperhold/docvault/internal/llm"
)

// docprocProviderKey identifies the OCR collaborator in cache keys; the
// service is not a language model, but its calls are cached the same way.
const docprocProviderKey = "docproc"

// Router decides, per file, whether text comes from the OCR/PDF service or a
// vision-capable language model, and whether a low-confidence OCR result
// warrants a second, more expensive pass.
type Router struct {
	DocProc *docproc.Client
	Cache   *cache.ResultCache
	// TwoStepImages sends images through the OCR service first and escalates
	// to vision only when confidence is low, instead of calling vision
	// directly.
	TwoStepImages bool
	Log           *slog.Logger
}

func NewRouter(dp *docproc.Client, c *cache.ResultCache, twoStep bool, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{DocProc: dp, Cache: c, TwoStepImages: twoStep, Log: log}
}

// ExtractInput carries the document plus the provider handling any vision
// pass. VisionData is the image actually sent to the provider: the original
// bytes, or a downscaled rendition when the original exceeds the upload limit.
type ExtractInput struct {
	Data        []byte
	VisionData  []byte
	Filename    string
	ContentType string
	Provider    llm.Provider
}

// ExtractOutcome is the router's result for one document.
type ExtractOutcome struct {
	Result      entity.ExtractionResult
	Reextracted bool
	Cached      bool
	Usage       entity.UsageStats
}

// Extract runs the extraction stage, advancing trace as it goes. Any failure
// aborts the pipeline at the extracting/reextracting stage; it never falls
// through to parsing with empty text.
func (r *Router) Extract(ctx context.Context, in ExtractInput, trace *Trace) (ExtractOutcome, error) {
	trace.Begin(StageExtract)

	switch {
	case constants.IsImage(in.Filename, in.ContentType):
		if r.TwoStepImages {
			return r.extractImageTwoStep(ctx, in, trace)
		}
		out, err := r.extractVision(ctx, in)
		if err != nil {
			trace.Fail(StageExtract)
			return ExtractOutcome{}, err
		}
		trace.Complete(StageExtract)
		trace.Skip(StageReextract)
		return out, nil

	case constants.IsPDF(in.Filename, in.ContentType):
		out, err := r.extractDocProc(ctx, in.Data, in.Filename)
		if err != nil {
			trace.Fail(StageExtract)
			return ExtractOutcome{}, err
		}
		trace.Complete(StageExtract)
		// The re-extraction gate applies to the image pipeline only.
		trace.Skip(StageReextract)
		return out, nil

	default:
		trace.Fail(StageExtract)
		return ExtractOutcome{}, common.NewAppError("UNSUPPORTED_TYPE",
			fmt.Sprintf("unsupported file type: %s", in.Filename), common.ErrInvalidInput)
	}
}

// extractImageTwoStep runs OCR first and escalates to a vision pass when the
// reported confidence is below the threshold. Exactly 0.8 does not escalate.
func (r *Router) extractImageTwoStep(ctx context.Context, in ExtractInput, trace *Trace) (ExtractOutcome, error) {
	out, err := r.extractDocProc(ctx, in.Data, in.Filename)
	if err != nil {
		trace.Fail(StageExtract)
		return ExtractOutcome{}, err
	}
	trace.Complete(StageExtract)

	res := out.Result
	if res.Method != entity.MethodOCR || res.Confidence == nil ||
		*res.Confidence >= constants.ReextractConfidenceThreshold {
		trace.Skip(StageReextract)
		return out, nil
	}

	r.Log.Info("pipeline.reextract.triggered",
		"filename", in.Filename, "confidence", *res.Confidence,
		"threshold", constants.ReextractConfidenceThreshold)
	trace.Begin(StageReextract)

	visionOut, err := r.extractVision(ctx, in)
	if err != nil {
		trace.Fail(StageReextract)
		return ExtractOutcome{}, err
	}
	trace.Complete(StageReextract)

	// The vision text supersedes the OCR text; the low OCR confidence is kept
	// on the record as the reason the second pass ran.
	visionOut.Result.Confidence = res.Confidence
	visionOut.Result.PageCount = res.PageCount
	visionOut.Reextracted = true
	visionOut.Cached = out.Cached && visionOut.Cached
	visionOut.Usage = out.Usage.Add(visionOut.Usage)
	return visionOut, nil
}

func (r *Router) extractDocProc(ctx context.Context, data []byte, filename string) (ExtractOutcome, error) {
	b64 := base64.StdEncoding.EncodeToString(data)

	payload, usage, hit, err := r.Cache.ExtractText(ctx, docprocProviderKey, b64, "",
		func(ctx context.Context) (entity.ExtractPayload, entity.UsageStats, error) {
			data, err := r.DocProc.Process(ctx, b64, filename)
			if err != nil {
				return entity.ExtractPayload{}, entity.UsageStats{}, err
			}
			return entity.ExtractPayload{
				ExtractedText: data.Text,
				Method:        docproc.MethodOf(data.Method),
				Confidence:    data.Confidence,
				PageCount:     data.PageCount,
			}, entity.UsageStats{}, nil
		})
	if err != nil {
		return ExtractOutcome{}, err
	}
	return ExtractOutcome{
		Result: entity.ExtractionResult{
			Text:       payload.ExtractedText,
			Method:     payload.Method,
			Confidence: payload.Confidence,
			PageCount:  payload.PageCount,
		},
		Cached: hit,
		Usage:  usage,
	}, nil
}

func (r *Router) extractVision(ctx context.Context, in ExtractInput) (ExtractOutcome, error) {
	visionData := in.VisionData
	if len(visionData) == 0 {
		visionData = in.Data
	}
	b64 := base64.StdEncoding.EncodeToString(visionData)
	dataURL := "data:" + constants.MimeTypeFor(in.Filename) + ";base64," + b64

	payload, usage, hit, err := r.Cache.ExtractText(ctx, in.Provider.Name(), b64, llm.ExtractionPrompt,
		func(ctx context.Context) (entity.ExtractPayload, entity.UsageStats, error) {
			res, err := in.Provider.ExtractText(ctx, dataURL)
			if err != nil {
				return entity.ExtractPayload{}, entity.UsageStats{}, err
			}
			return entity.ExtractPayload{ExtractedText: res.Text, Method: entity.MethodLLM}, res.Usage, nil
		})
	if err != nil {
		return ExtractOutcome{}, err
	}
	return ExtractOutcome{
		Result: entity.ExtractionResult{
			Text:   payload.ExtractedText,
			Method: entity.MethodLLM,
		},
		Cached: hit,
		Usage:  usage,
	}, nil
}
