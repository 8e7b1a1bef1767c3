package media

import (
	"image"
	"log"
	"math"
	"os"

	"gocv.io/x/gocv"
)

// EmbeddingModel extracts identity-discriminating face embeddings
// (ArcFace, FaceNet, etc.) from a face crop.
type EmbeddingModel struct {
	Net       gocv.Net
	Enabled   bool
	ModelName string

	InputSizeW int
	InputSizeH int
}

// NewEmbeddingModel loads a face embedding network
func NewEmbeddingModel(modelPath string, modelName string) *EmbeddingModel {
	if modelPath == "" {
		log.Println("recognition: model path is empty, disabling face embedding")
		return &EmbeddingModel{Enabled: false}
	}

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		log.Printf("recognition: ERROR - Model file does not exist: %s", modelPath)
		return &EmbeddingModel{Enabled: false}
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		log.Printf("recognition: ERROR - ReadNet returned an empty network for %s. Check file path and integrity.", modelName)
		return &EmbeddingModel{Enabled: false}
	}
	log.Printf("recognition: successfully loaded %s model", modelName)

	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)
	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Printf("recognition: Set backend/target to CUDA for %s", modelName)
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Printf("recognition: Set backend/target to CPU (Default) for %s", modelName)
	}

	var inputSizeW, inputSizeH int
	switch modelName {
	case "facenet":
		inputSizeW, inputSizeH = 160, 160
	default: // arcface
		inputSizeW, inputSizeH = 112, 112
	}

	return &EmbeddingModel{
		Net:        net,
		Enabled:    true,
		ModelName:  modelName,
		InputSizeW: inputSizeW,
		InputSizeH: inputSizeH,
	}
}

func (m *EmbeddingModel) Close() {
	if m != nil && m.Enabled {
		m.Net.Close()
		log.Printf("recognition: closed %s network", m.ModelName)
		m.Enabled = false
	}
}

// ExtractEmbedding extracts an L2-normalized embedding from a face region.
func (m *EmbeddingModel) ExtractEmbedding(faceRegion gocv.Mat) []float32 {
	if m == nil || !m.Enabled || faceRegion.Empty() {
		return nil
	}

	processed := m.preprocessFace(faceRegion)
	if processed.Empty() {
		log.Printf("recognition: ERROR - face preprocessing returned empty matrix")
		return nil
	}
	defer processed.Close()

	// ArcFace/FaceNet expect pixel values normalized to [0,1]
	blob := gocv.BlobFromImage(processed, 1.0/255.0, image.Pt(m.InputSizeW, m.InputSizeH), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	m.Net.SetInput(blob, "")
	output := m.Net.Forward("")
	defer output.Close()

	embedding := extractVector(output)
	if len(embedding) == 0 {
		return nil
	}

	return normalizeEmbedding(embedding)
}

// preprocessFace converts the crop to RGB float32 at the network input size.
func (m *EmbeddingModel) preprocessFace(faceRegion gocv.Mat) gocv.Mat {
	var processed gocv.Mat
	if faceRegion.Channels() == 3 {
		processed = gocv.NewMat()
		gocv.CvtColor(faceRegion, &processed, gocv.ColorBGRToRGB)
	} else {
		processed = faceRegion.Clone()
	}
	defer processed.Close()

	resized := gocv.NewMat()
	gocv.Resize(processed, &resized, image.Pt(m.InputSizeW, m.InputSizeH), 0, 0, gocv.InterpolationLinear)

	converted := gocv.NewMat()
	resized.ConvertTo(&converted, gocv.MatTypeCV32F)
	resized.Close()

	return converted
}

// extractVector flattens the network output into a []float32.
func extractVector(output gocv.Mat) []float32 {
	if len(output.Size()) == 0 {
		return nil
	}

	flattened := output.Reshape(1, 1)
	defer flattened.Close()

	embedding := make([]float32, flattened.Cols())
	for i := 0; i < len(embedding); i++ {
		embedding[i] = flattened.GetFloatAt(0, i)
	}
	return embedding
}

// normalizeEmbedding scales the vector to unit length (L2 normalization).
func normalizeEmbedding(embedding []float32) []float32 {
	var norm float32
	for _, val := range embedding {
		norm += val * val
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm == 0 {
		return embedding
	}

	normalized := make([]float32, len(embedding))
	for i, val := range embedding {
		normalized[i] = val / norm
	}
	return normalized
}
