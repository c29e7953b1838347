//go:build embed_model

package provider

import "embed"

// The NER model downloaded by tools/download-model is compiled into the
// binary so air-gapped deployments can run person-name recognition without
// network access at startup.
//
//go:embed all:models
var embeddedModelFS embed.FS

const hasEmbeddedModel = true
