package oracle

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"challenge-verifier/internal/common/logger"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// CLIP BPE special tokens. The end-of-text token doubles as padding.
const (
	clipBOS = 49406
	clipEOS = 49407
	clipPad = clipEOS
)

var errClipClosed = errors.New("clip oracle is closed")

var ortInitOnce sync.Once
var ortInitErr error

// ClipOptions locates the exported CLIP graphs. ImageModelPath is a vision
// encoder with projection (pixel_values -> image_embeds), TextModelPath a text
// encoder with projection (input_ids, attention_mask -> text_embeds).
type ClipOptions struct {
	ModelName         string
	Device            string
	SharedLibraryPath string
	ImageModelPath    string
	TextModelPath     string
	TokenizerPath     string
	ImageSize         int
	ContextLength     int
	EmbeddingDim      int
}

// Clip scores images with a local CLIP model through ONNX Runtime. Sessions
// are not assumed thread-safe, so inference is serialised. Prompt embeddings
// are served from the text cache when possible.
type Clip struct {
	opts   ClipOptions
	cache  TextCache
	logger logger.Logger

	mu        sync.Mutex
	imageSess *ort.DynamicAdvancedSession
	textSess  *ort.DynamicAdvancedSession
	tk        *tokenizer.Tokenizer

	// encoders run under mu; swapped out in tests.
	encodeImage func(img image.Image) ([]float32, error)
	encodeTexts func(prompts []string) ([][]float32, error)
}

// NewClip initialises ONNX Runtime, loads both encoders and the tokenizer.
// cache may be nil to disable prompt caching.
func NewClip(opts ClipOptions, cache TextCache, log logger.Logger) (*Clip, error) {
	ortInitOnce.Do(func() {
		if opts.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(opts.SharedLibraryPath)
		}
		if !ort.IsInitialized() {
			ortInitErr = ort.InitializeEnvironment()
		}
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", ortInitErr)
	}

	sessOpts, err := newSessionOptions(opts.Device)
	if err != nil {
		return nil, err
	}
	defer sessOpts.Destroy()

	imageSess, err := ort.NewDynamicAdvancedSession(opts.ImageModelPath,
		[]string{"pixel_values"}, []string{"image_embeds"}, sessOpts)
	if err != nil {
		return nil, fmt.Errorf("load image encoder %s: %w", opts.ImageModelPath, err)
	}
	textSess, err := ort.NewDynamicAdvancedSession(opts.TextModelPath,
		[]string{"input_ids", "attention_mask"}, []string{"text_embeds"}, sessOpts)
	if err != nil {
		imageSess.Destroy()
		return nil, fmt.Errorf("load text encoder %s: %w", opts.TextModelPath, err)
	}
	tk, err := pretrained.FromFile(opts.TokenizerPath)
	if err != nil {
		imageSess.Destroy()
		textSess.Destroy()
		return nil, fmt.Errorf("load tokenizer %s: %w", opts.TokenizerPath, err)
	}

	c := &Clip{
		opts:      opts,
		cache:     cache,
		logger:    log.WithFields(map[string]interface{}{"component": "clip", "model": opts.ModelName}),
		imageSess: imageSess,
		textSess:  textSess,
		tk:        tk,
	}
	c.encodeImage = c.runImage
	c.encodeTexts = c.runTexts

	c.logger.Info("clip model loaded", map[string]interface{}{
		"device":       opts.Device,
		"imageModel":   opts.ImageModelPath,
		"textModel":    opts.TextModelPath,
		"embeddingDim": opts.EmbeddingDim,
	})
	return c, nil
}

func newSessionOptions(device string) (*ort.SessionOptions, error) {
	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if device != "cuda" {
		return sessOpts, nil
	}

	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		sessOpts.Destroy()
		return nil, fmt.Errorf("create cuda provider options: %w", err)
	}
	defer cudaOpts.Destroy()
	if err := sessOpts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		sessOpts.Destroy()
		return nil, fmt.Errorf("enable cuda provider: %w", err)
	}
	return sessOpts, nil
}

type scoreResult struct {
	scores Scores
	err    error
}

// Score embeds img and the prompts and returns their cosine similarities. If
// ctx ends first the call returns ctx.Err(). An inference already running
// completes in the background and its prompt embeddings still reach the
// cache; a call still waiting for the model when ctx ends never runs it.
func (c *Clip) Score(ctx context.Context, img image.Image, prompts []string) (Scores, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan scoreResult, 1)
	go func() {
		scores, err := c.score(ctx, img, prompts)
		done <- scoreResult{scores: scores, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.scores, res.err
	}
}

// score runs both encoders. ctx gates each encoder run; once a run starts it
// is not interrupted.
func (c *Clip) score(ctx context.Context, img image.Image, prompts []string) (Scores, error) {
	textVecs, err := c.textEmbeddings(ctx, prompts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.encodeImage == nil {
		c.mu.Unlock()
		return nil, errClipClosed
	}
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	imgVec, err := c.encodeImage(img)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	imgVec = l2Normalize(imgVec)

	values := make([]float64, len(prompts))
	for i, vec := range textVecs {
		if len(vec) != len(imgVec) {
			return nil, fmt.Errorf("embedding size mismatch: image %d, text %d", len(imgVec), len(vec))
		}
		values[i] = dot(imgVec, vec)
	}
	return NewScores(prompts, values)
}

// textEmbeddings returns normalised prompt vectors, computing only cache misses.
func (c *Clip) textEmbeddings(ctx context.Context, prompts []string) ([][]float32, error) {
	cacheCtx := context.WithoutCancel(ctx)
	out := make([][]float32, len(prompts))
	var missing []string
	var missingIdx []int

	for i, p := range prompts {
		if c.cache != nil {
			if vec, ok := c.cache.Get(cacheCtx, TextCacheKey(c.opts.ModelName, p)); ok {
				out[i] = vec
				continue
			}
		}
		missing = append(missing, p)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	c.mu.Lock()
	if c.encodeTexts == nil {
		c.mu.Unlock()
		return nil, errClipClosed
	}
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	vecs, err := c.encodeTexts(missing)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("encode prompts: %w", err)
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("text encoder returned %d embeddings for %d prompts", len(vecs), len(missing))
	}

	for j, vec := range vecs {
		vec = l2Normalize(vec)
		out[missingIdx[j]] = vec
		if c.cache != nil {
			c.cache.Set(cacheCtx, TextCacheKey(c.opts.ModelName, missing[j]), vec)
		}
	}
	return out, nil
}

func (c *Clip) runImage(img image.Image) ([]float32, error) {
	size := int64(c.opts.ImageSize)
	input, err := ort.NewTensor(ort.NewShape(1, 3, size, size), preprocessImage(img, c.opts.ImageSize))
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(c.opts.EmbeddingDim)))
	if err != nil {
		return nil, err
	}
	defer output.Destroy()

	if err := c.imageSess.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, err
	}
	return cloneVector(output.GetData()), nil
}

func (c *Clip) runTexts(prompts []string) ([][]float32, error) {
	tokenized := make([][]int, len(prompts))
	for i, p := range prompts {
		enc, err := c.tk.EncodeSingle(normalizePrompt(p), true)
		if err != nil {
			return nil, fmt.Errorf("tokenize %q: %w", p, err)
		}
		tokenized[i] = enc.Ids
	}
	ids, mask := buildTextInputs(tokenized, c.opts.ContextLength)

	n := int64(len(prompts))
	shape := ort.NewShape(n, int64(c.opts.ContextLength))
	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, err
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, err
	}
	defer maskTensor.Destroy()

	dim := c.opts.EmbeddingDim
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(n, int64(dim)))
	if err != nil {
		return nil, err
	}
	defer output.Destroy()

	if err := c.textSess.Run([]ort.Value{idsTensor, maskTensor}, []ort.Value{output}); err != nil {
		return nil, err
	}

	data := output.GetData()
	vecs := make([][]float32, len(prompts))
	for i := range vecs {
		vecs[i] = cloneVector(data[i*dim : (i+1)*dim])
	}
	return vecs, nil
}

func normalizePrompt(p string) string {
	return strings.ToLower(strings.Join(strings.Fields(p), " "))
}

// buildTextInputs frames each token sequence with the CLIP start and end
// tokens, truncates it to contextLength and pads the rest.
func buildTextInputs(tokenized [][]int, contextLength int) (ids, mask []int64) {
	ids = make([]int64, len(tokenized)*contextLength)
	mask = make([]int64, len(tokenized)*contextLength)

	for i, toks := range tokenized {
		seq := make([]int, 0, len(toks)+2)
		if len(toks) == 0 || toks[0] != clipBOS {
			seq = append(seq, clipBOS)
		}
		seq = append(seq, toks...)
		if seq[len(seq)-1] != clipEOS {
			seq = append(seq, clipEOS)
		}
		if len(seq) > contextLength {
			seq = append(seq[:contextLength-1], clipEOS)
		}

		row := ids[i*contextLength : (i+1)*contextLength]
		rowMask := mask[i*contextLength : (i+1)*contextLength]
		for j := range row {
			if j < len(seq) {
				row[j] = int64(seq[j])
				rowMask[j] = 1
			} else {
				row[j] = clipPad
			}
		}
	}
	return ids, mask
}

// Ready reports whether the model is loaded.
func (c *Clip) Ready(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.encodeImage == nil || c.encodeTexts == nil {
		return errClipClosed
	}
	return nil
}

// Close releases the ONNX Runtime sessions. Later calls fail.
func (c *Clip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.encodeImage = nil
	c.encodeTexts = nil
	var errs []error
	if c.imageSess != nil {
		errs = append(errs, c.imageSess.Destroy())
		c.imageSess = nil
	}
	if c.textSess != nil {
		errs = append(errs, c.textSess.Destroy())
		c.textSess = nil
	}
	return errors.Join(errs...)
}
