package avatar

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"companion.arpa/engine/archive"
	"companion.arpa/engine/emotion"
	"companion.arpa/engine/personality"
	"companion.arpa/engine/prompt"
	"companion.arpa/engine/provider"
	"companion.arpa/tools/random"
)

// Config holds the orchestrator's generation defaults. Style and the scene
// defaults come from external configuration, not code.
type Config struct {
	Style      string
	Background string
	Lighting   string
	Quality    string

	Width    int
	Height   int
	Steps    int
	Guidance float64

	// ArchiveKeep bounds the archive during probabilistic cleanup.
	ArchiveKeep int
	// CleanupChance is the per-generation probability of running cleanup.
	CleanupChance float64
}

func (c Config) withDefaults() Config {
	if c.Style == "" {
		c.Style = prompt.DefaultStyle
	}
	if c.Background == "" {
		c.Background = prompt.DefaultBackground
	}
	if c.Lighting == "" {
		c.Lighting = prompt.DefaultLighting
	}
	if c.Quality == "" {
		c.Quality = prompt.DefaultQuality
	}
	if c.Width == 0 {
		c.Width = 768
	}
	if c.Height == 0 {
		c.Height = 1024
	}
	if c.Steps == 0 {
		c.Steps = 28
	}
	if c.Guidance == 0 {
		c.Guidance = 7.0
	}
	if c.ArchiveKeep == 0 {
		c.ArchiveKeep = 50
	}
	if c.CleanupChance == 0 {
		c.CleanupChance = 0.1
	}
	return c
}

// VariationOptions request seed-reproducible variety in one generation.
type VariationOptions struct {
	Seed     int64
	Keywords []string
}

// Orchestrator runs the full generation pipeline: parameters from state,
// prompt composition (with optional meta-prompting), provider invocation,
// and image-resource lifecycle. It is transactional with respect to
// IsGenerating/HasError and notifies subscribers exactly once per outcome.
type Orchestrator struct {
	log        *zap.Logger
	config     Config
	controller *Controller

	composer      *prompt.Composer
	meta          *prompt.Delegator
	personalities personality.Source

	image    provider.ImageProvider
	releaser provider.ReferenceReleaser
	archives *archive.Storage

	// inflight is a single-slot token serializing overlapping triggers.
	inflight chan struct{}

	// ownedRef is the current locally-owned image reference, if any.
	// Single owner: released exactly once, on replacement or Close.
	refMu    sync.Mutex
	ownedRef string
}

// OrchestratorOpts collects the orchestrator's collaborators. Image, meta,
// personality source, releaser, and archive are all optional; missing ones
// degrade per the engine's error policy instead of failing construction.
type OrchestratorOpts struct {
	Controller    *Controller
	Composer      *prompt.Composer
	Meta          *prompt.Delegator
	Personalities personality.Source
	Image         provider.ImageProvider
	Releaser      provider.ReferenceReleaser
	Archive       *archive.Storage
}

func NewOrchestrator(log *zap.Logger, c Config, opts OrchestratorOpts) *Orchestrator {
	o := &Orchestrator{
		log:           log,
		config:        c.withDefaults(),
		controller:    opts.Controller,
		composer:      opts.Composer,
		meta:          opts.Meta,
		personalities: opts.Personalities,
		image:         opts.Image,
		releaser:      opts.Releaser,
		archives:      opts.Archive,
		inflight:      make(chan struct{}, 1),
	}
	o.controller.SetGenerateHook(func(ctx context.Context) error {
		return o.Generate(ctx, "", nil, "")
	})
	return o
}

// Generate produces a new avatar image for the current state. Overlapping
// invocations serialize on the in-flight slot in arrival order. A missing
// image provider is a logged no-op; all other failures surface on the state
// record, never as a crash.
func (o *Orchestrator) Generate(ctx context.Context, conversationContext string, variation *VariationOptions, aiDescription string) error {
	return o.generate(ctx, conversationContext, variation, aiDescription, nil)
}

// generate is the shared pipeline entry. A non-nil scene carries a complete
// parameter set that replaces the state/config-derived one, used when a
// description has already been mapped through the keyword tables.
func (o *Orchestrator) generate(ctx context.Context, conversationContext string, variation *VariationOptions, aiDescription string, scene *prompt.Parameters) error {
	if o.image == nil {
		o.log.Info("No image provider active, skipping generation")
		return nil
	}

	select {
	case o.inflight <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-o.inflight }()

	started := time.Now()
	o.controller.mutate(func(s *State) {
		s.IsGenerating = true
		s.HasError = false
		s.ErrorMessage = ""
	})

	result, genErr := o.run(ctx, conversationContext, variation, aiDescription, scene)

	// Exactly one completion notification, success or not.
	o.controller.mutate(func(s *State) {
		s.IsGenerating = false
		if genErr != nil {
			s.HasError = true
			s.ErrorMessage = genErr.Error()
			// Previous image stays adopted and displayable.
			return
		}
		s.HasError = false
		s.ErrorMessage = ""
		s.ImageURL = result.ImageURL
	})

	if genErr != nil {
		o.log.Error("Avatar generation failed",
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(genErr))
		return genErr
	}

	o.log.Debug("Avatar generation complete",
		zap.Duration("elapsed", time.Since(started)),
		zap.String("image", result.ImageURL))
	return nil
}

type generationOutcome struct {
	ImageURL string
}

func (o *Orchestrator) run(ctx context.Context, conversationContext string, variation *VariationOptions, aiDescription string, scene *prompt.Parameters) (generationOutcome, error) {
	state := o.controller.Snapshot()

	var params prompt.Parameters
	if scene != nil {
		// The keyword tables already decided the full scene, including
		// lighting and background.
		params = *scene
	} else {
		params = prompt.Parameters{
			Expression: state.Expression,
			Pose:       state.Pose,
			Action:     state.Action,
			Background: o.config.Background,
			Lighting:   o.config.Lighting,
		}
	}
	params.Style = o.config.Style
	params.Quality = o.config.Quality
	params.AIDescription = aiDescription
	if variation != nil {
		params.VariationSeed = variation.Seed
		params.ContextualKeywords = append([]string(nil), variation.Keywords...)
	}

	pers := o.activePersonality()

	// Stage C first: a successful meta-prompt replaces the local prompt
	// wholesale, while composition still supplies the negative prompt.
	if o.meta.Enabled() {
		authored, err := o.meta.Author(ctx, params, prompt.StateSummary{
			Expression: state.Expression,
			Pose:       state.Pose,
			Action:     state.Action,
			Visible:    state.Visible,
		}, pers, conversationContext)
		if err != nil {
			o.log.Warn("Meta-prompting failed, falling back to local composition", zap.Error(err))
		} else {
			params.MetaGeneratedImagePrompt = authored
		}
	}

	components := o.composer.Compose(params, pers, conversationContext)
	finalPrompt, negativePrompt := components.Compile()
	if params.MetaGeneratedImagePrompt != "" {
		finalPrompt = params.MetaGeneratedImagePrompt
	}

	hash := RequestHash(params, finalPrompt, negativePrompt)
	o.log.Debug("Generation request",
		zap.String("hash", hash),
		zap.String("provider", o.image.Info().ID),
		zap.String("model", o.image.Info().Model))

	req := provider.ImageRequest{
		Prompt:   finalPrompt,
		Width:    o.config.Width,
		Height:   o.config.Height,
		Steps:    o.config.Steps,
		Guidance: o.config.Guidance,
	}
	if prompt.AllowsNegativePrompt(o.image.Info()) {
		req.NegativePrompt = negativePrompt
	}

	res, err := o.image.GenerateImage(ctx, req)
	if err != nil {
		return generationOutcome{}, err
	}

	o.adoptReference(res.ImageURL)
	o.archiveResult(ctx, res, finalPrompt, req.NegativePrompt, params, hash)

	return generationOutcome{ImageURL: res.ImageURL}, nil
}

// GenerateFromDescription derives a complete parameter set from an
// AI-authored scene description, makes the avatar visible, and generates
// with the raw description as the creative brief so hybrid compilation
// applies. The derived scene, lighting and background included, flows
// straight into the prompt rather than being rebuilt from state.
func (o *Orchestrator) GenerateFromDescription(ctx context.Context, description, position string) error {
	derived := emotion.DescriptionParams(description)

	o.controller.mutate(func(s *State) {
		s.Visible = true
		s.Expression = derived.Expression
		s.Pose = derived.Pose
		s.Action = derived.Action
		if position != "" {
			s.Position = position
		}
	})

	return o.generate(ctx, "", &VariationOptions{Seed: random.Seed()}, description, &derived)
}

func (o *Orchestrator) activePersonality() *personality.Profile {
	if o.personalities == nil {
		return nil
	}
	pers, err := o.personalities.Active()
	if err != nil {
		o.log.Warn("Personality lookup failed, composing without personality", zap.Error(err))
		return nil
	}
	return pers
}

// adoptReference takes ownership of a fresh image reference, releasing the
// previously owned local one exactly once.
func (o *Orchestrator) adoptReference(ref string) {
	o.refMu.Lock()
	defer o.refMu.Unlock()
	if o.ownedRef != "" && o.releaser != nil {
		o.releaser.Release(o.ownedRef)
	}
	if IsLocalRef(ref) {
		o.ownedRef = ref
	} else {
		o.ownedRef = ""
	}
}

// archiveResult persists the generation and occasionally prunes old rows.
// Best-effort housekeeping: failures are warnings.
func (o *Orchestrator) archiveResult(ctx context.Context, res provider.ImageResult, finalPrompt, negativePrompt string, params prompt.Parameters, hash string) {
	if o.archives == nil {
		return
	}

	rec := archive.Record{
		ImageURL:       res.ImageURL,
		Prompt:         finalPrompt,
		NegativePrompt: negativePrompt,
		Style:          params.Style,
		Model:          res.Model,
		Provider:       o.image.Info().ID,
		RequestHash:    hash,
		Tags:           []string{params.Expression, params.Pose},
	}
	if err := o.archives.SaveImage(ctx, rec); err != nil {
		o.log.Warn("Failed to archive generated image", zap.Error(err))
	}

	if !random.Bool(o.config.CleanupChance) {
		return
	}
	released, err := o.archives.CleanupOldImages(ctx, o.config.ArchiveKeep)
	if err != nil {
		o.log.Warn("Archive cleanup failed", zap.Error(err))
		return
	}
	o.refMu.Lock()
	owned := o.ownedRef
	o.refMu.Unlock()
	for _, ref := range released {
		if IsLocalRef(ref) && ref != owned && o.releaser != nil {
			o.releaser.Release(ref)
		}
	}
	if len(released) > 0 {
		o.log.Debug("Archive cleanup released old images", zap.Int("count", len(released)))
	}
}

// Close releases the currently owned local image reference.
func (o *Orchestrator) Close() {
	o.refMu.Lock()
	defer o.refMu.Unlock()
	if o.ownedRef != "" && o.releaser != nil {
		o.releaser.Release(o.ownedRef)
		o.ownedRef = ""
	}
}
