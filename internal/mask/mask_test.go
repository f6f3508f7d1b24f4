package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpscan/cpscan/pkg/element"
)

func TestApply_FirstOccurrenceWinsAcrossManyElements(t *testing.T) {
	dup := func(path string) *element.Resource {
		return &element.Resource{LogicalPath: path, IsClassfile: true}
	}

	p := &element.Element{WhitelistedClassfileResources: []*element.Resource{dup("com/x/T.class")}}
	q := &element.Element{WhitelistedClassfileResources: []*element.Resource{dup("com/x/T.class"), dup("com/x/U.class")}}
	r := &element.Element{WhitelistedClassfileResources: []*element.Resource{dup("com/x/U.class")}}

	Apply([]*element.Element{p, q, r})

	require.Len(t, p.WhitelistedClassfileResources, 1)
	require.Len(t, q.WhitelistedClassfileResources, 1)
	assert.Equal(t, "com/x/U.class", q.WhitelistedClassfileResources[0].LogicalPath)
	assert.Empty(t, r.WhitelistedClassfileResources)
}
