package uploadapi

import (
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtoDescribesServedMethods(t *testing.T) {
	src, err := os.ReadFile("upload.proto")
	require.NoError(t, err)

	pkg := regexp.MustCompile(`(?m)^package ([\w.]+);`).FindSubmatch(src)
	require.NotNil(t, pkg)
	svc := regexp.MustCompile(`(?m)^service (\w+) \{`).FindSubmatch(src)
	require.NotNil(t, svc)
	assert.Equal(t, ServiceName, string(pkg[1])+"."+string(svc[1]))

	var methods []string
	for _, m := range regexp.MustCompile(`(?m)^\s*rpc (\w+)\(`).FindAllSubmatch(src, -1) {
		methods = append(methods, "/"+ServiceName+"/"+string(m[1]))
	}
	assert.ElementsMatch(t, []string{
		MethodInitiateUpload,
		MethodFinalizeUpload,
		MethodListDocumentVersions,
		MethodGetDownloadURL,
	}, methods)
}
