package errors

// Convenience constructors for the failure modes the pipeline surfaces to
// callers. Keeping them here avoids category/kind drift across packages.

// UnsupportedPackage reports a package whose kind is not one of the three
// supported office formats.
func UnsupportedPackage(detail string) *DocgenError {
	return New(CategoryPackage, KindUnsupportedPackage, detail)
}

// TemplateNotFound reports a missing template record.
func TemplateNotFound(templateID string) *DocgenError {
	return New(CategoryTemplate, KindTemplateNotFound, "template not found").
		WithContext("template_id", templateID)
}

// ArtifactNotFound reports a download request for an id never registered.
func ArtifactNotFound(artifactID string) *DocgenError {
	return New(CategoryArtifact, KindArtifactNotFound, "artifact not found").
		WithContext("artifact_id", artifactID)
}

// ArtifactExpired reports a download request for an expired artifact.
func ArtifactExpired(artifactID string) *DocgenError {
	return New(CategoryArtifact, KindArtifactExpired, "artifact expired").
		WithContext("artifact_id", artifactID)
}

// ConversionTimeout reports a converter subprocess exceeding its deadline.
func ConversionTimeout(err error, input string) *DocgenError {
	return Wrap(err, CategoryConversion, KindConversionTimeout, "conversion timed out").
		WithContext("input", input)
}

// ConversionFailed reports a converter run that produced no usable output.
func ConversionFailed(err error, detail string) *DocgenError {
	return Wrap(err, CategoryConversion, KindConversionFailed, detail)
}

// UnsupportedEmbedTarget reports composition into a non word-processing
// package.
func UnsupportedEmbedTarget(kind string) *DocgenError {
	return New(CategoryCompose, KindUnsupportedEmbedTarget, "embedding is only supported for word-processing packages").
		WithContext("package_kind", kind)
}

// ValidationError creates a new validation error (400 Bad Request).
func ValidationError(message string) *DocgenError {
	e := New(CategoryValidation, KindValidation, message)
	e.Severity = SeverityWarning
	return e
}
