package upload

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/postora/postora-server/internal/config"
)

// CheckCategory fails with UnsupportedCategory when the category has no policy.
func CheckCategory(policies *config.PolicyTable, category Category) (config.CategoryPolicy, *Error) {
	policy, ok := policies.Lookup(string(category))
	if !ok {
		return config.CategoryPolicy{}, &Error{
			Stage:  StageValidation,
			Kind:   KindUnsupportedCategory,
			Reason: fmt.Sprintf("unsupported file category %q", category),
		}
	}
	return policy, nil
}

// CheckType fails with DisallowedType when contentType is not in the policy's allowed set.
func CheckType(policy config.CategoryPolicy, contentType string) *Error {
	ct := NormalizeContentType(contentType)
	if !policy.Allows(ct) {
		return &Error{
			Stage:  StageValidation,
			Kind:   KindDisallowedType,
			Reason: fmt.Sprintf("file type %s not allowed", ct),
		}
	}
	return nil
}

// CheckSize fails with TooLarge when size exceeds the policy maximum.
func CheckSize(policy config.CategoryPolicy, size int64) *Error {
	if size > policy.MaxBytes {
		return &Error{
			Stage: StageValidation,
			Kind:  KindTooLarge,
			Reason: fmt.Sprintf("file size %s exceeds the %s limit",
				humanize.IBytes(uint64(max(size, 0))), humanize.IBytes(uint64(policy.MaxBytes))),
		}
	}
	return nil
}

// Validate runs the category, type and size checks in that order and returns the
// policy that admitted the file.
func Validate(policies *config.PolicyTable, category Category, contentType string, size int64) (config.CategoryPolicy, *Error) {
	policy, verr := CheckCategory(policies, category)
	if verr != nil {
		return config.CategoryPolicy{}, verr
	}
	if verr := CheckType(policy, contentType); verr != nil {
		return config.CategoryPolicy{}, verr
	}
	if verr := CheckSize(policy, size); verr != nil {
		return config.CategoryPolicy{}, verr
	}
	return policy, nil
}
