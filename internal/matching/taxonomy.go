package matching

import (
	"sort"

	"relieflink-backend/internal/models"
)

// requestTypeTaxonomy maps each known request type to the resource category
// families that can satisfy it. Matching consults this table and nothing
// else: no substring search, so "thuốc" inside an unrelated word can never
// produce a false positive.
var requestTypeTaxonomy = map[string][]string{
	"Thực phẩm khẩn cấp":           {models.CategoryFood},
	"Thực phẩm dinh dưỡng":         {models.CategoryFood},
	"Nước uống và thuốc men":       {models.CategoryWater, models.CategoryMedical},
	"Hỗ trợ y tế":                  {models.CategoryMedical},
	"Vật tư y tế chuyên dụng":      {models.CategoryMedical},
	"Chỗ ở tạm thời":               {models.CategoryShelter},
	"Quần áo và đồ dùng cá nhân":   {models.CategoryClothing},
	"Năng lượng và điện":           {models.CategoryEnergy, models.CategoryElectric},
	"Thiết bị cứu hộ":              {models.CategoryElectric},
}

// CompatibleCategories returns the resource categories able to satisfy the
// request type, or nil for an unknown type (which therefore never matches).
func CompatibleCategories(requestType string) []string {
	return requestTypeTaxonomy[requestType]
}

// IsCompatible reports whether a resource category can satisfy the request
// type. Exact family membership only.
func IsCompatible(requestType, resourceCategory string) bool {
	for _, category := range requestTypeTaxonomy[requestType] {
		if category == resourceCategory {
			return true
		}
	}
	return false
}

// KnownRequestTypes returns the request types the taxonomy covers, sorted
// for stable API output.
func KnownRequestTypes() []string {
	types := make([]string, 0, len(requestTypeTaxonomy))
	for requestType := range requestTypeTaxonomy {
		types = append(types, requestType)
	}
	sort.Strings(types)
	return types
}
