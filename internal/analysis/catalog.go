package analysis

// #region label

// Label is one skin condition class the models can emit.
type Label string

const (
	LabelActinicKeratosis         Label = "actinic_keratosis"
	LabelBasalCellCarcinoma       Label = "basal_cell_carcinoma"
	LabelDermatofibroma           Label = "dermatofibroma"
	LabelMelanoma                 Label = "melanoma"
	LabelNevus                    Label = "nevus"
	LabelPigmentedBenignKeratosis Label = "pigmented_benign_keratosis"
	LabelSeborrheicKeratosis      Label = "seborrheic_keratosis"
	LabelSquamousCellCarcinoma    Label = "squamous_cell_carcinoma"
	LabelVascularLesion           Label = "vascular_lesion"

	// Extended set emitted by the enhanced model only.
	LabelEczema            Label = "eczema"
	LabelPsoriasis         Label = "psoriasis"
	LabelContactDermatitis Label = "contact_dermatitis"
	LabelHemangioma        Label = "hemangioma"
	LabelLipoma            Label = "lipoma"
	LabelFibroma           Label = "fibroma"
)

// #endregion

// #region catalog

// labelInfo carries the clinical mapping for one label.
type labelInfo struct {
	Category   Category
	RiskWeight float32 // baseline risk contribution in [0,1]
	Display    string
}

// catalog maps every known label to its category and baseline risk weight.
var catalog = map[Label]labelInfo{
	LabelActinicKeratosis:         {CategoryPremalignant, 0.60, "Actinic keratosis"},
	LabelBasalCellCarcinoma:       {CategoryMalignant, 0.80, "Basal cell carcinoma"},
	LabelDermatofibroma:           {CategoryBenign, 0.10, "Dermatofibroma"},
	LabelMelanoma:                 {CategoryMalignant, 0.95, "Melanoma"},
	LabelNevus:                    {CategoryBenign, 0.15, "Melanocytic nevus"},
	LabelPigmentedBenignKeratosis: {CategoryBenign, 0.10, "Pigmented benign keratosis"},
	LabelSeborrheicKeratosis:      {CategoryBenign, 0.10, "Seborrheic keratosis"},
	LabelSquamousCellCarcinoma:    {CategoryMalignant, 0.85, "Squamous cell carcinoma"},
	LabelVascularLesion:           {CategoryVascular, 0.20, "Vascular lesion"},
	LabelEczema:                   {CategoryInflammatory, 0.15, "Eczema"},
	LabelPsoriasis:                {CategoryInflammatory, 0.15, "Psoriasis"},
	LabelContactDermatitis:        {CategoryInflammatory, 0.10, "Contact dermatitis"},
	LabelHemangioma:               {CategoryVascular, 0.15, "Hemangioma"},
	LabelLipoma:                   {CategoryBenign, 0.05, "Lipoma"},
	LabelFibroma:                  {CategoryBenign, 0.10, "Fibroma"},
}

// #endregion

// #region lookups

// CategoryOf returns the clinical category for a label, CategoryUnknown if unlisted.
func CategoryOf(l Label) Category {
	if info, ok := catalog[l]; ok {
		return info.Category
	}
	return CategoryUnknown
}

// RiskWeightOf returns the baseline risk weight for a label, 0 if unlisted.
func RiskWeightOf(l Label) float32 {
	if info, ok := catalog[l]; ok {
		return info.RiskWeight
	}
	return 0
}

// DisplayNameOf returns the human-readable name for a label.
func DisplayNameOf(l Label) string {
	if info, ok := catalog[l]; ok {
		return info.Display
	}
	return string(l)
}

// KnownLabels returns every catalog label in stable sorted order.
func KnownLabels() []Label {
	out := make([]Label, 0, len(catalog))
	for l := range catalog {
		out = append(out, l)
	}
	sortLabels(out)
	return out
}

// #endregion
