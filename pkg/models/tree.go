package models

// TreeNode is one node of the hierarchy rendered by the frontend.
// Children is never nil so leaves encode as an empty array.
type TreeNode struct {
	Name     string     `json:"name"`
	Children []TreeNode `json:"children"`
}

// Leaf returns a node without children.
func Leaf(name string) TreeNode {
	return TreeNode{Name: name, Children: []TreeNode{}}
}
