package sampletree

import (
	"fmt"
	"strings"

	"github.com/himanishpuri/SampleTree/pkg/models"
)

// Direction selects which relations a tree shows.
type Direction string

const (
	// DirectionSampledBy shows only the songs that sample the root.
	DirectionSampledBy Direction = "sampled_by"
	// DirectionBoth shows "Sampled by" and "Samples" subtrees under the root.
	DirectionBoth Direction = "both"
)

// Group node names used by BuildWithSamples.
const (
	SampledByGroup = "Sampled by"
	SamplesGroup   = "Samples"
)

// ParseDirection parses a direction name. Empty means DirectionSampledBy.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "", DirectionSampledBy:
		return DirectionSampledBy, nil
	case DirectionBoth:
		return DirectionBoth, nil
	default:
		return "", fmt.Errorf("unknown direction %q (want %s or %s)", s, DirectionSampledBy, DirectionBoth)
	}
}

// Build returns the tree rendered for a record: the title at the root, one
// child per song that samples it, and that song's artists as leaves.
// Input order is preserved. Build does not modify rec.
func Build(rec *models.LineageRecord) models.TreeNode {
	return models.TreeNode{
		Name:     rec.Title,
		Children: refNodes(rec.SampledBy),
	}
}

// BuildWithSamples is Build with both directions under separate group nodes.
func BuildWithSamples(rec *models.LineageRecord) models.TreeNode {
	return models.TreeNode{
		Name: rec.Title,
		Children: []models.TreeNode{
			{Name: SampledByGroup, Children: refNodes(rec.SampledBy)},
			{Name: SamplesGroup, Children: refNodes(rec.Samples)},
		},
	}
}

// BuildTree dispatches on dir.
func BuildTree(rec *models.LineageRecord, dir Direction) models.TreeNode {
	if dir == DirectionBoth {
		return BuildWithSamples(rec)
	}
	return Build(rec)
}

func refNodes(refs []models.SampleRef) []models.TreeNode {
	nodes := make([]models.TreeNode, 0, len(refs))
	for _, ref := range refs {
		artists := make([]models.TreeNode, 0, len(ref.Artists))
		for _, artist := range ref.Artists {
			artists = append(artists, models.Leaf(artist))
		}
		nodes = append(nodes, models.TreeNode{Name: ref.TrackName, Children: artists})
	}
	return nodes
}
