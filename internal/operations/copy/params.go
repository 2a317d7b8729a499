package copy

import (
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// Params is the payload of one copy task. A Params whose source key ends in
// "/" and that is not a leaf is a container: it is listed, not copied.
type Params struct {
	Source s3types.Location

	// Target.Key is optional. When empty the key comes from KeyTemplate.
	Target         s3types.Location
	KeyTemplate    string
	RelativePrefix string

	Headers         map[string]string
	HeaderDirective s3types.Directive
	ACL             map[string]string
	ACLDirective    s3types.Directive
	Tags            map[string]string
	TagDirective    s3types.Directive

	StorageClass s3types.StorageClass
	DeleteSource bool

	TriggerType s3types.TriggerType
	AvoidLoop   bool

	// Size comes from the listing for expanded children, 0 otherwise.
	Size int64

	Leaf   bool
	cursor string
}

// Location implements hierarchy.Node.
func (p Params) Location() s3types.Location { return p.Source }

// IsLeaf implements hierarchy.Node.
func (p Params) IsLeaf() bool { return p.Leaf }

// Cursor implements hierarchy.Node.
func (p Params) Cursor() string { return p.cursor }

// Child implements hierarchy.Node. The child inherits every setting of the
// container. An explicit target key ending in "/" is a destination prefix
// that receives the child's key relative to the container. Requests with
// any other explicit key on a container are rejected before a run starts,
// so such a key is dropped here rather than reused for every child.
func (p Params) Child(obj s3types.Object) Params {
	c := p
	c.Source.Key = obj.Key
	c.Size = obj.Size
	c.Leaf = true
	c.cursor = ""

	if p.Target.Key != "" {
		if strings.HasSuffix(p.Target.Key, "/") {
			c.Target.Key = p.Target.Key + strings.TrimPrefix(obj.Key, p.Source.Key)
		} else {
			c.Target.Key = ""
		}
	}
	return c
}

// Continue implements hierarchy.Node.
func (p Params) Continue(cursor string) Params {
	c := p
	c.cursor = cursor
	return c
}
