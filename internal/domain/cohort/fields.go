package cohort

// Field is a named filter field mapped onto a column of the joined view.
type Field struct {
	Key    string `json:"key"`
	Column string `json:"column"`
	Kind   Kind   `json:"kind"`
}

var registry = []Field{
	{Key: "gender", Column: "Gender", Kind: KindCategorical},
	{Key: "collections", Column: "Collections", Kind: KindCategorical},
	{Key: "diabetes_status", Column: "Description of diabetes status", Kind: KindCategorical},
	{Key: "ethnicities", Column: "Ethnicities", Kind: KindCategorical},
	{Key: "cause_of_death", Column: "Cause of Death", Kind: KindCategorical},
	{Key: "donation_type", Column: "Donation Type", Kind: KindCategorical},
	{Key: "isolation_center", Column: biosamplePrefx + "Isolation_center", Kind: KindCategorical},

	{Key: "age", Column: "Age (years)", Kind: KindNumerical},
	{Key: "bmi", Column: "BMI", Kind: KindNumerical},
	{Key: "hba1c", Column: "HbA1C (percentage)", Kind: KindNumerical},
	{Key: "diabetes_duration", Column: "Diabetes Duration (years)", Kind: KindNumerical},
	{Key: "c_peptide", Column: "C-Peptide (ng/ml)", Kind: KindNumerical},
	{Key: "purity", Column: biosamplePrefx + "Purity (Percentage)", Kind: KindNumerical},
	{Key: "viability", Column: biosamplePrefx + "Prep Viability (percentage)", Kind: KindNumerical},
	{Key: "islet_yield", Column: biosamplePrefx + "Islet Yield (IEQ)", Kind: KindNumerical},

	{Key: "aab_gada_positive", Column: aabPositiveColumn("GADA"), Kind: KindBoolean},
	{Key: "aab_ia2_positive", Column: aabPositiveColumn("IA2"), Kind: KindBoolean},
	{Key: "aab_iaa_positive", Column: aabPositiveColumn("IAA"), Kind: KindBoolean},
	{Key: "aab_znt8_positive", Column: aabPositiveColumn("ZNT8"), Kind: KindBoolean},
	{Key: "multi_aab", Column: colMultiAAB, Kind: KindBoolean},
}

var registryByKey = func() map[string]Field {
	m := make(map[string]Field, len(registry))
	for _, f := range registry {
		m[f.Key] = f
	}
	return m
}()

// Fields returns the filter field registry.
func Fields() []Field {
	return append([]Field(nil), registry...)
}

// LookupField returns the registry entry for key.
func LookupField(key string) (Field, bool) {
	f, ok := registryByKey[key]
	return f, ok
}
