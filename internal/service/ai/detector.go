package ai

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"trafficserver/internal/config"
	"trafficserver/internal/logger"
	"trafficserver/internal/model"
)

var (
	// ErrMalformedFrame is returned for bytes that do not decode to an image.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrDetectorNotReady is returned when the network failed to load.
	ErrDetectorNotReady = errors.New("detection network not initialized")
)

// DetectorService runs an SSD MobileNet COCO network over encoded frames.
type DetectorService struct {
	net        gocv.Net
	ready      bool
	mu         sync.Mutex
	threshold  float32
	modelPath  string
	configPath string
	logger     *logger.Logger
}

// NewDetectorService creates a detector with model/config paths and a logger.
// It attempts to initialize the underlying DNN network; on failure the
// service stays usable but Detect reports ErrDetectorNotReady.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		threshold:  float32(cfg.DetectionThreshold),
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
	}
	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable target: %w", err)
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Ready reports whether the network is loaded and not yet closed.
func (s *DetectorService) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Image is a decoded frame held as a gocv Mat.
type Image struct {
	mat gocv.Mat
}

// Size returns the image width and height in pixels.
func (i *Image) Size() (width, height int) {
	return i.mat.Cols(), i.mat.Rows()
}

// Close releases the Mat.
func (i *Image) Close() error {
	return i.mat.Close()
}

// Decode decodes data into an Image the caller must close.
func (s *DetectorService) Decode(data []byte) (model.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedFrame)
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		mat.Close()
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: decoded image is empty", ErrMalformedFrame)
	}
	return &Image{mat: mat}, nil
}

// Detect runs the network on an image from Decode and returns the
// detections above the confidence threshold, in pixel coordinates.
func (s *DetectorService) Detect(img model.Image) ([]model.Detection, error) {
	frame, ok := img.(*Image)
	if !ok || frame == nil {
		return nil, fmt.Errorf("%w: unsupported image %T", ErrMalformedFrame, img)
	}

	// Blob parameters that fit the SSD COCO input.
	blob := gocv.BlobFromImage(frame.mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return nil, ErrDetectorNotReady
	}
	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	s.mu.Unlock()
	defer output.Close()

	cols, rows := float32(frame.mat.Cols()), float32(frame.mat.Rows())
	detections := make([]model.Detection, 0)

	// Rows are [batch_id, class_id, confidence, x1, y1, x2, y2].
	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()
	for i := 0; i < reshaped.Rows(); i++ {
		confidence := reshaped.GetFloatAt(i, 2)
		if confidence <= s.threshold {
			continue
		}
		classID := int(reshaped.GetFloatAt(i, 1))
		detections = append(detections, model.Detection{
			Box: model.BoundingBox{
				X1: int(reshaped.GetFloatAt(i, 3) * cols),
				Y1: int(reshaped.GetFloatAt(i, 4) * rows),
				X2: int(reshaped.GetFloatAt(i, 5) * cols),
				Y2: int(reshaped.GetFloatAt(i, 6) * rows),
			},
			Label:      ClassLabel(classID),
			Confidence: float64(confidence),
		})
	}

	return detections, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil
	}
	s.ready = false
	return s.net.Close()
}

var cocoLabels = map[int]string{
	1:  "person",
	2:  "bicycle",
	3:  "car",
	4:  "motorbike",
	5:  "airplane",
	6:  "bus",
	7:  "train",
	8:  "truck",
	9:  "boat",
	10: "traffic light",
	13: "stop sign",
	16: "bird",
	17: "cat",
	18: "dog",
}

// ClassLabel maps model class IDs to label names.
func ClassLabel(classID int) string {
	if label, ok := cocoLabels[classID]; ok {
		return label
	}
	return fmt.Sprintf("unknown%d", classID)
}
