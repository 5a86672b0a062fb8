package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pupring/engrave/internal/common"
	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/detect"
	"github.com/pupring/engrave/internal/engraving"
	"github.com/pupring/engrave/internal/facecrop"
	"github.com/pupring/engrave/internal/storage"
	"github.com/pupring/engrave/internal/utils"
)

// Process runs one request through the full pipeline. It never panics out and
// never returns an error: every outcome, including terminal rejection and
// fatal failure, is expressed in the returned Result.
func (o *Orchestrator) Process(ctx context.Context, req Request) (result *Result) {
	timer := common.NewTimer()
	result = &Result{
		State:      StateUploaded,
		Styles:     make(map[string]engraving.StyleOutput),
		Composites: make(map[string]string),
	}
	result.listener = o.listener
	if req.Listener != nil {
		result.listener = NewMultiListener(o.listener, req.Listener)
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic recovered", "panic", r)
			o.fail(result, &FatalError{Stage: string(result.State), Err: fmt.Errorf("internal error: %v", r)})
		}
		result.Elapsed = timer.Stop()
	}()

	if cached, ok := o.cache.Get(req); ok {
		o.logger.Debug("pipeline cache hit", "filename", req.Filename)
		hit := *cached
		hit.Cached = true
		hit.listener = nil
		result = &hit
		return result
	}

	baseID := uuid.NewString()[:8]

	img, err := o.stageUpload(ctx, req, result)
	if err != nil {
		o.fail(result, err)
		return result
	}

	box, err := o.stageDetect(ctx, req, img, result)
	if err != nil {
		o.fail(result, err)
		return result
	}

	img = o.stageCrop(img, box, result)

	if err := o.stageEngrave(ctx, img, baseID, result); err != nil {
		o.fail(result, err)
		return result
	}

	o.stageComposite(ctx, req.PetName, baseID, result)
	o.stageOptimize(ctx, baseID, result)

	o.setState(result, StateDone)
	result.Success = true
	o.cache.Put(req, result)
	o.logger.Info("pipeline run completed",
		"filename", req.Filename,
		"styles", len(result.Styles),
		"composites", len(result.Composites))
	return result
}

// stageUpload decodes the input, runs the optional background removal, and
// publishes the original image. Undecodable input is a terminal rejection;
// a storage failure is fatal.
func (o *Orchestrator) stageUpload(ctx context.Context, req Request, result *Result) (image.Image, error) {
	timer := common.NewNamedTimer(StepUpload)

	img, _, err := utils.DecodeImage(req.Data)
	if err != nil {
		o.record(result, StepUpload, StepFailed, "unreadable image file", timer.Stop())
		return nil, &RejectionError{Message: "unreadable image file, please upload a valid photo", Err: err}
	}

	data := req.Data
	if o.remover != nil {
		processed := o.remover.Remove(ctx, data)
		if !bytes.Equal(processed, data) {
			if processedImg, _, decodeErr := utils.DecodeImage(processed); decodeErr == nil {
				img, data = processedImg, processed
			} else {
				o.logger.Warn("background-removed payload undecodable, keeping original",
					"error", decodeErr)
			}
		}
	}

	uploaded, err := o.store.Upload(ctx, data, storage.UploadOptions{
		Folder: o.cfg.UploadFolder,
		Format: uploadFormat(req.Filename),
	})
	if err != nil {
		o.record(result, StepUpload, StepFailed, "storage upload failed", timer.Stop())
		return nil, &FatalError{Stage: StepUpload, Err: err}
	}

	result.OriginalURL = uploaded.URL
	o.record(result, StepUpload, StepCompleted, "", timer.Stop())
	o.setState(result, StateUploaded)
	return img, nil
}

// stageDetect resolves a bounding box: caller-supplied coordinates bypass the
// detector; a low-confidence detector verdict is a terminal rejection; any
// other detector trouble degrades to the deterministic fallback.
func (o *Orchestrator) stageDetect(ctx context.Context, req Request, img image.Image, result *Result) (facecrop.BoundingBox, error) {
	timer := common.NewNamedTimer(StepDetection)
	bounds := img.Bounds()

	if req.CustomBox != nil && req.CustomBox.Valid() {
		custom := detect.CustomBox(req.CustomBox.CenterX, req.CustomBox.CenterY, req.CustomBox.Width, req.CustomBox.Height)
		result.DetectionSource = custom.Source
		o.record(result, StepDetection, StepCompleted, "custom coordinates", timer.Stop())
		o.setState(result, StateDetected)
		return custom.Box, nil
	}

	detection, err := o.detector.Detect(ctx, result.OriginalURL, bounds.Dx(), bounds.Dy())
	if err != nil {
		var lowConf *detect.LowConfidenceError
		if errors.As(err, &lowConf) {
			o.record(result, StepDetection, StepFailed, lowConf.Error(), timer.Stop())
			return facecrop.BoundingBox{}, &RejectionError{
				Message: "no clear pet face detected, please upload a clearer photo",
				Err:     err,
			}
		}
		o.logger.Warn("detector error, using fallback detection", "error", err)
		fallback := detect.FallbackBox(bounds.Dx(), bounds.Dy())
		result.DetectionSource = detect.SourceFallback
		o.record(result, StepDetection, StepCompleted, "fallback detection", timer.Stop())
		o.setState(result, StateDetected)
		return fallback, nil
	}

	result.DetectionSource = detection.Source
	o.record(result, StepDetection, StepCompleted, string(detection.Source), timer.Stop())
	o.setState(result, StateDetected)
	return detection.Box, nil
}

// stageCrop applies the face-geometry normalizer. Failure skips the crop and
// keeps the full image; it never fails the pipeline.
func (o *Orchestrator) stageCrop(img image.Image, box facecrop.BoundingBox, result *Result) image.Image {
	timer := common.NewNamedTimer(StepCropping)
	bounds := img.Bounds()

	region, err := facecrop.Normalize(box, bounds.Dx(), bounds.Dy(), o.cfg.CropProfile)
	if err != nil {
		o.logger.Warn("crop region computation failed, using full image", "error", err)
		o.record(result, StepCropping, StepSkipped, err.Error(), timer.Stop())
		return img
	}

	cropped := imaging.Crop(img, image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height))
	o.record(result, StepCropping, StepCompleted,
		fmt.Sprintf("%dx%d at (%d,%d)", region.Width, region.Height, region.X, region.Y), timer.Stop())
	o.setState(result, StateCropped)
	return cropped
}

// stageEngrave fans the style filters out and requires at least one style to
// survive; a complete wipeout is fatal.
func (o *Orchestrator) stageEngrave(ctx context.Context, img image.Image, baseID string, result *Result) error {
	timer := common.NewNamedTimer(StepEngraving)

	variants, err := o.generator.Generate(ctx, img, baseID)
	if err != nil {
		o.record(result, StepEngraving, StepFailed, err.Error(), timer.Stop())
		return &FatalError{Stage: StepEngraving, Err: err}
	}
	if !variants.Success {
		detail := "all engraving styles failed"
		if len(variants.Errors) > 0 {
			detail = variants.Errors[0].Error()
		}
		o.record(result, StepEngraving, StepFailed, detail, timer.Stop())
		return &FatalError{Stage: StepEngraving, Err: errors.New(detail)}
	}

	for name, out := range variants.Styles {
		result.Styles[name] = out
	}
	result.FinalURL = o.primaryStyleURL(result)
	o.record(result, StepEngraving, StepCompleted,
		fmt.Sprintf("%d styles, %d failures", len(variants.Styles), len(variants.Errors)), timer.Stop())
	o.setState(result, StateEngraved)
	return nil
}

// stageComposite renders a pendant preview per style. Individual failures
// only narrow the composites map.
func (o *Orchestrator) stageComposite(ctx context.Context, petName, baseID string, result *Result) {
	timer := common.NewNamedTimer(StepCompositing)
	if o.comp == nil || o.templateImage == nil {
		o.record(result, StepCompositing, StepSkipped, "no template configured", timer.Stop())
		return
	}

	var mu sync.Mutex
	failures := 0
	eg, egCtx := errgroup.WithContext(ctx)

	for name, out := range result.Styles {
		name, out := name, out
		if out.Raster == nil {
			continue
		}
		eg.Go(func() error {
			url, err := o.compositeStyle(egCtx, petName, baseID, name, out)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.logger.Warn("pendant composite failed", "style", name, "error", err)
				failures++
				return nil
			}
			result.Composites[name] = url
			return nil
		})
	}
	_ = eg.Wait()

	status := StepCompleted
	if len(result.Composites) == 0 {
		status = StepFailed
	}
	o.record(result, StepCompositing, status,
		fmt.Sprintf("%d composites, %d failures", len(result.Composites), failures), timer.Stop())
	o.setState(result, StateComposited)
}

func (o *Orchestrator) compositeStyle(ctx context.Context, petName, baseID, style string, out engraving.StyleOutput) (string, error) {
	composited, err := o.comp.Composite(o.templateImage, o.cfg.CompositeTemplate, []compositor.PetEngraving{
		{Image: out.Raster.Image(), Name: petName},
	})
	if err != nil {
		return "", err
	}
	encoded, err := utils.EncodePNG(composited)
	if err != nil {
		return "", err
	}
	uploaded, err := o.store.Upload(ctx, encoded, storage.UploadOptions{
		Folder:   o.cfg.CompositeFolder,
		PublicID: baseID + "-" + style + "-composite",
		Format:   "png",
	})
	if err != nil {
		return "", err
	}
	return uploaded.URL, nil
}

// stageOptimize re-encodes the primary style within the configured bounds and
// republishes it. Failure keeps the prior URL; it never fails the pipeline.
func (o *Orchestrator) stageOptimize(ctx context.Context, baseID string, result *Result) {
	timer := common.NewNamedTimer(StepOptimization)

	primary, ok := o.primaryStyle(result)
	if !ok || primary.Raster == nil {
		o.record(result, StepOptimization, StepSkipped, "no style to optimize", timer.Stop())
		return
	}

	limited, err := utils.LimitSize(primary.Raster.Image(), o.cfg.OptimizeMaxSize, o.cfg.OptimizeMaxSize)
	if err != nil {
		o.logger.Warn("optimization resize failed, keeping prior URL", "error", err)
		o.record(result, StepOptimization, StepFailed, err.Error(), timer.Stop())
		return
	}
	encoded, err := utils.EncodePNG(limited)
	if err != nil {
		o.logger.Warn("optimization encode failed, keeping prior URL", "error", err)
		o.record(result, StepOptimization, StepFailed, err.Error(), timer.Stop())
		return
	}
	uploaded, err := o.store.Upload(ctx, encoded, storage.UploadOptions{
		Folder:   o.cfg.OptimizedFolder,
		PublicID: baseID + "-final",
		Format:   "png",
	})
	if err != nil {
		o.logger.Warn("optimization upload failed, keeping prior URL", "error", err)
		o.record(result, StepOptimization, StepFailed, err.Error(), timer.Stop())
		return
	}

	result.FinalURL = uploaded.URL
	o.record(result, StepOptimization, StepCompleted, "", timer.Stop())
	o.setState(result, StateOptimized)
}

// primaryStyle prefers the standard style and otherwise picks the first
// style in the strategy's rendering order.
func (o *Orchestrator) primaryStyle(result *Result) (engraving.StyleOutput, bool) {
	if out, ok := result.Styles[engraving.StyleStandard]; ok {
		return out, true
	}
	for _, name := range o.strategy.StyleNames() {
		if out, ok := result.Styles[name]; ok {
			return out, true
		}
	}
	return engraving.StyleOutput{}, false
}

func (o *Orchestrator) primaryStyleURL(result *Result) string {
	if out, ok := o.primaryStyle(result); ok {
		return out.URL
	}
	return ""
}

func (o *Orchestrator) fail(result *Result, err error) {
	result.Success = false
	result.State = StateFailed
	result.Error = err.Error()

	var rejection *RejectionError
	if errors.As(err, &rejection) {
		result.RequiresNewImage = true
		result.Error = rejection.Message
	}
	o.listenerFor(result).OnStateChange(StateFailed)
	o.logger.Warn("pipeline run failed",
		"error", result.Error,
		"requiresNewImage", result.RequiresNewImage)
}

func (o *Orchestrator) record(result *Result, name string, status StepStatus, details string, duration time.Duration) {
	record := StepRecord{Name: name, Status: status, Details: details, Duration: duration}
	result.Steps = append(result.Steps, record)
	o.listenerFor(result).OnStep(record)
}

func (o *Orchestrator) setState(result *Result, state State) {
	result.State = state
	o.listenerFor(result).OnStateChange(state)
}

func (o *Orchestrator) listenerFor(result *Result) ProgressListener {
	if result.listener != nil {
		return result.listener
	}
	return o.listener
}

func uploadFormat(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "jpg", "jpeg", "png", "webp", "bmp":
		return ext
	default:
		return "png"
	}
}
