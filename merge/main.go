// Package merge combines the reference panel, the user's imputed
// dosages and their directly-genotyped calls into a single 51-sample
// variant stream, one chromosome at a time.
package merge

import (
	"io"
	"math"

	"github.com/captainzonks/GeneGnome/genome"
	"github.com/captainzonks/GeneGnome/imputed"
	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/models/constants"
	"github.com/captainzonks/GeneGnome/models/constants/source"
	"github.com/captainzonks/GeneGnome/models/constants/threshold"
	"github.com/captainzonks/GeneGnome/reconcile"
	"github.com/captainzonks/GeneGnome/refpanel"
)

// ImputedSource is the streaming side of the walk; satisfied by
// *imputed.Reader.
type ImputedSource interface {
	Next() (*imputed.Variant, error)
}

// Merger holds the per-job inputs that survive across chromosomes.
type Merger struct {
	panel     *refpanel.Store
	genome    *genome.File
	threshold constants.QualityThreshold
	sampleIDs []string
}

func New(panel *refpanel.Store, genomeFile *genome.File, qualityThreshold constants.QualityThreshold) *Merger {
	return &Merger{
		panel:     panel,
		genome:    genomeFile,
		threshold: qualityThreshold,
		sampleIDs: models.SampleIDs(),
	}
}

type identity struct {
	position uint64
	ref, alt string
}

// MergeChromosome walks the panel cursor and the imputed stream in
// position order and emits one MergedVariant per panel site. The panel
// drives: a site is only emittable when all 50 reference calls exist,
// so imputed records with no panel match are discarded. Both streams
// are position-ordered, which keeps the imputed lookahead bounded to
// the records sharing the current position.
func (m *Merger) MergeChromosome(chrom uint8, stream ImputedSource, emit func(*models.MergedVariant) error) (models.ChromosomeStats, error) {
	stats := models.ChromosomeStats{Chromosome: chrom}

	cursor, err := m.panel.Scan(chrom)
	if err != nil {
		return stats, err
	}
	defer cursor.Close()

	consumerIndex := m.genome.ByPosition(chrom)

	lookahead := make(map[identity]*imputed.Variant)
	streamDone := stream == nil
	var pending *imputed.Variant

	var lastKey identity
	emittedAny := false

	for {
		panelVariant, cursorErr := cursor.Next()
		if cursorErr == io.EOF {
			break
		}
		if cursorErr != nil {
			return stats, cursorErr
		}

		if len(panelVariant.RefAllele) != 1 || len(panelVariant.AltAllele) != 1 {
			stats.IndelsDropped++
			continue
		}

		key := identity{panelVariant.Position, panelVariant.RefAllele, panelVariant.AltAllele}
		if emittedAny && key == lastKey {
			continue
		}

		// pull the imputed stream forward to the current position,
		// evicting entries the walk has passed
		for !streamDone && (pending == nil || pending.Position <= panelVariant.Position) {
			if pending != nil {
				if pending.Indel() {
					stats.IndelsDropped++
				} else {
					lookahead[identity{pending.Position, pending.RefAllele, pending.AltAllele}] = pending
				}
			}
			pending, err = stream.Next()
			if err == io.EOF {
				streamDone = true
				pending = nil
				break
			}
			if err != nil {
				return stats, err
			}
		}
		for k := range lookahead {
			if k.position < panelVariant.Position {
				delete(lookahead, k)
			}
		}

		merged := m.buildVariant(panelVariant, lookahead[key], consumerIndex, &stats)
		if err = emit(merged); err != nil {
			return stats, err
		}
		stats.Variants++
		lastKey = key
		emittedAny = true
	}

	return stats, nil
}

// buildVariant assembles the 51-sample record for one panel site.
// Precedence for the user's call: a resolvable consumer genotype wins,
// then the imputed dosage, then the zero-dosage reference fallback.
func (m *Merger) buildVariant(panelVariant *refpanel.Variant, imputedVariant *imputed.Variant, consumerIndex map[uint64]genome.IndexedCall, stats *models.ChromosomeStats) *models.MergedVariant {
	merged := &models.MergedVariant{
		Rsid:            panelVariant.Rsid,
		Chromosome:      panelVariant.Chromosome,
		Position:        panelVariant.Position,
		RefAllele:       panelVariant.RefAllele,
		AltAllele:       panelVariant.AltAllele,
		AlleleFreq:      panelVariant.AlleleFreq,
		MinorAlleleFreq: panelVariant.MinorAlleleFreq,
		IsTyped:         panelVariant.IsTyped,
		Samples:         make([]models.SampleCall, 0, constants.TotalSampleCount),
	}

	// the panel's site-level R² applies to the reference calls; it is
	// NaN on typed sites
	for i, phased := range panelVariant.Genotypes {
		merged.Samples = append(merged.Samples, models.SampleCall{
			SampleID: m.sampleIDs[i],
			Genotype: phased,
			Dosage:   reconcile.DosageFromPhased(phased),
			Source:   source.Reference,
			Quality:  panelVariant.ImputationQuality,
		})
	}

	user := models.SampleCall{
		SampleID: m.sampleIDs[constants.TotalSampleCount-1],
		Genotype: "0|0",
		Dosage:   0,
		Source:   source.Reference,
		Quality:  math.NaN(),
	}

	resolved := false
	if call, ok := consumerIndex[panelVariant.Position]; ok {
		res := reconcile.Resolve(call.Genotype, panelVariant.RefAllele, panelVariant.AltAllele)
		if res.Kind == reconcile.OK {
			user.Genotype = res.Phased
			user.Dosage = res.Dosage
			user.Source = source.Genotyped
			resolved = true
			if merged.Rsid == "" {
				merged.Rsid = call.Rsid
			}
		} else if res.Kind == reconcile.AllelesMismatch {
			stats.AlleleMismatches++
		}
		// mismatch, invalid and missing all fall through to imputed
	}

	if !resolved && imputedVariant != nil {
		user.Genotype = reconcile.PhasedFromDosage(imputedVariant.Dosage)
		user.Dosage = imputedVariant.Dosage
		user.Quality = imputedVariant.Quality
		if threshold.Passes(m.threshold, imputedVariant.Quality) {
			user.Source = source.Imputed
		} else {
			user.Source = source.ImputedLowQuality
		}
		if merged.Rsid == "" {
			merged.Rsid = imputedVariant.Rsid
		}
	}

	merged.Samples = append(merged.Samples, user)
	switch user.Source {
	case source.Genotyped:
		stats.UserGenotyped++
	case source.Imputed:
		stats.UserImputed++
	case source.ImputedLowQuality:
		stats.UserImputedLowQ++
	default:
		stats.UserReferenceOnly++
	}
	return merged
}
