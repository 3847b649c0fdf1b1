package types

// Topology is process-wide state describing how images map onto nodes,
// initialized once at startup. In single-image-per-process mode ImageID
// equals the node id for every node.
type Topology struct {
	// ImageCounts[node] is the number of images hosted by that node.
	ImageCounts []int
	// Offsets[node] is the prefix sum of ImageCounts up to node, i.e. the
	// first image id owned by that node.
	Offsets []int
	// ImageNode[image] maps an image id back to its owning node.
	ImageNode []int
}

// NewTopology builds a Topology from the per-node image counts.
func NewTopology(imageCounts []int) *Topology {
	offsets := make([]int, len(imageCounts))
	total := 0
	for i, c := range imageCounts {
		offsets[i] = total
		total += c
	}
	imageNode := make([]int, total)
	for node, c := range imageCounts {
		for i := 0; i < c; i++ {
			imageNode[offsets[node]+i] = node
		}
	}
	return &Topology{ImageCounts: imageCounts, Offsets: offsets, ImageNode: imageNode}
}

// NodeOf returns the owning node of the given image.
func (t *Topology) NodeOf(image int) int { return t.ImageNode[image] }

// ImageCount returns the total number of images across every node.
func (t *Topology) ImageCount() int { return len(t.ImageNode) }

// FirstImage returns the lowest image id owned by node.
func (t *Topology) FirstImage(node int) int { return t.Offsets[node] }

// SingleImage builds the degenerate topology with exactly one image per
// node, where image id equals node id.
func SingleImage(nodeCount int) *Topology {
	counts := make([]int, nodeCount)
	for i := range counts {
		counts[i] = 1
	}
	return NewTopology(counts)
}
