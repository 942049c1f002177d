// Package domain contains the core types of the fiche de visite:
// the criteria catalog, the rating scale, the report aggregate and
// the scoring engine.
package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Categories
// =============================================================================

// Category is one of the three fixed evaluation categories.
type Category string

const (
	CategoryAdministratif Category = "Administratif"
	CategorySecurite      Category = "Sécurité"
	CategoryEnvironnement Category = "Environnement"
)

// Categories lists the categories in their fixed display order.
// All iteration over categories (scoring, serialization, composition)
// must use this order.
var Categories = []Category{
	CategoryAdministratif,
	CategorySecurite,
	CategoryEnvironnement,
}

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsValid returns true if the category is a recognized value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryAdministratif, CategorySecurite, CategoryEnvironnement:
		return true
	}
	return false
}

// Weight returns the category's aggregation weight for the overall score.
func (c Category) Weight() float64 {
	switch c {
	case CategoryAdministratif:
		return 0.5
	case CategorySecurite:
		return 3
	case CategoryEnvironnement:
		return 1
	default:
		return 0
	}
}

// =============================================================================
// Criteria Catalog
// =============================================================================

// Catalog holds the ordered list of criterion names for each category.
// It is immutable after process start.
type Catalog struct {
	criteria map[Category][]string
}

// DefaultCatalog returns the built-in BR CONSULT criteria catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{criteria: map[Category][]string{
		CategoryAdministratif: {
			"PPSPS ou Plan de Prévention disponible(s) sur chantier",
			"Rapport(s) de vérification échafaudage / appareils de levage établi(s)",
			"Rapport(s) de vérification des machine(s) utilisées établi(s)",
			"Affichage",
			"Autres documents disponibles",
		},
		CategorySecurite: {
			"Locaux de vie",
			"Port des EPI et vêtements de travail classiques",
			"Échafaudage / protection collective",
			"Risques de chute",
			"Risque électrique",
			"Risques liés aux produits chimiques",
			"Risques incendie, explosion",
			"Connaissance situation d'urgence",
			"Manutention manuelle et mécanique",
			"Prise en compte demandes CARSAT / Direction",
			"Organisation chantier",
			"Réalisation des actions précédentes",
			"Autres risques",
		},
		CategoryEnvironnement: {
			"Propreté générale du chantier",
			"Protection sol, pelouse, flore",
			"Gestion des déchets",
			"Impact riverains",
			"Autres",
		},
	}}
}

// catalogFile is the YAML shape of a catalog override file.
type catalogFile struct {
	Administratif []string `yaml:"administratif"`
	Securite      []string `yaml:"securite"`
	Environnement []string `yaml:"environnement"`
}

// LoadCatalog reads a catalog override from a YAML file. Every category must
// list at least one criterion; the category set and weights are not
// overridable.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	criteria := map[Category][]string{
		CategoryAdministratif: file.Administratif,
		CategorySecurite:      file.Securite,
		CategoryEnvironnement: file.Environnement,
	}
	for _, cat := range Categories {
		if len(criteria[cat]) == 0 {
			return nil, fmt.Errorf("catalog file %s: category %s has no criteria", path, cat)
		}
	}

	return &Catalog{criteria: criteria}, nil
}

// Criteria returns the ordered criterion names for a category.
// The returned slice must not be modified.
func (c *Catalog) Criteria(cat Category) []string {
	return c.criteria[cat]
}

// Has returns true if the named criterion belongs to the category.
func (c *Catalog) Has(cat Category, name string) bool {
	for _, crit := range c.criteria[cat] {
		if crit == name {
			return true
		}
	}
	return false
}

// Len returns the total number of criteria across all categories.
func (c *Catalog) Len() int {
	n := 0
	for _, cat := range Categories {
		n += len(c.criteria[cat])
	}
	return n
}
