package enums

import "fmt"

// ProductStatus gates purchasability. Only active products can be added to
// a cart or checked out; the soft-delete flag on the product row is an
// independent predicate checked alongside this one.
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusSoldOut  ProductStatus = "sold_out"
)

var validProductStatuses = []ProductStatus{
	ProductStatusDraft,
	ProductStatusActive,
	ProductStatusInactive,
	ProductStatusSoldOut,
}

// String implements fmt.Stringer.
func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}

// ProductCategory represents the catalog categories.
type ProductCategory string

const (
	ProductCategoryFashion     ProductCategory = "fashion"
	ProductCategoryElectronics ProductCategory = "electronics"
	ProductCategoryHome        ProductCategory = "home"
	ProductCategoryBeauty      ProductCategory = "beauty"
	ProductCategorySports      ProductCategory = "sports"
	ProductCategoryOthers      ProductCategory = "others"
)

var validProductCategories = []ProductCategory{
	ProductCategoryFashion,
	ProductCategoryElectronics,
	ProductCategoryHome,
	ProductCategoryBeauty,
	ProductCategorySports,
	ProductCategoryOthers,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
