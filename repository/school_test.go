package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundwise/fundsheet/entity"
	"github.com/fundwise/fundsheet/pkg/testsupport"
)

func seedSchools(f *testsupport.FakeTableStore, schools ...entity.School) {
	codec := schoolCodec{}
	rows := [][]string{codec.Headers()}
	for _, s := range schools {
		rows = append(rows, codec.Encode(s))
	}
	f.Seed(codec.Table(), rows)
}

func newSchoolRepo(fake *testsupport.FakeTableStore) *SchoolRepository {
	return NewSchoolRepository(NewTable[entity.School](fake, testTableID, schoolCodec{}, nil))
}

func sampleSchools() []entity.School {
	lincoln := entity.NewSchool("Lincoln High", "CA", "public")
	lincoln.District = "Oakland Unified"
	lincoln.Enrollment = 1800
	washington := entity.NewSchool("Washington Middle", "CA", "public")
	washington.District = "Fresno Unified"
	washington.Enrollment = 900
	stMary := entity.NewSchool("St. Mary Academy", "CA", "Private")
	stMary.District = "Oakland Unified"
	stMary.Enrollment = 400
	austinHigh := entity.NewSchool("Austin High", "TX", "public")
	austinHigh.District = "Austin ISD"
	austinHigh.Enrollment = 2200
	return []entity.School{lincoln, washington, stMary, austinHigh}
}

func TestSchoolFinders(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedSchools(fake, sampleSchools()...)
	repo := newSchoolRepo(fake)
	ctx := context.Background()

	inCA, err := repo.FindByState(ctx, "ca")
	require.NoError(t, err)
	assert.Len(t, inCA, 3)

	private, err := repo.FindByType(ctx, "PRIVATE")
	require.NoError(t, err)
	require.Len(t, private, 1)
	assert.Equal(t, "St. Mary Academy", private[0].Name)

	oakland, err := repo.FindByStateAndDistrict(ctx, "CA", "oakland unified")
	require.NoError(t, err)
	assert.Len(t, oakland, 2)

	byName, err := repo.FindByName(ctx, "high")
	require.NoError(t, err)
	assert.Len(t, byName, 2)
}

func TestEnrollmentQueries(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedSchools(fake, sampleSchools()...)
	repo := newSchoolRepo(fake)
	ctx := context.Background()

	mid, err := repo.ByEnrollmentRange(ctx, 500, 2000)
	require.NoError(t, err)
	assert.Len(t, mid, 2)

	largest, err := repo.LargestSchools(ctx, 2)
	require.NoError(t, err)
	require.Len(t, largest, 2)
	assert.Equal(t, "Austin High", largest[0].Name)
	assert.Equal(t, "Lincoln High", largest[1].Name)
}

func TestSchoolSummaryAndDistricts(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	seedSchools(fake, sampleSchools()...)
	repo := newSchoolRepo(fake)
	ctx := context.Background()

	summary, err := repo.Summary(ctx, "CA")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, 3100, summary.TotalEnrollment)
	assert.Equal(t, 2, summary.ByType["public"])
	assert.Equal(t, 1, summary.ByType["private"])
	assert.Equal(t, []string{"Fresno Unified", "Oakland Unified"}, summary.Districts)

	districts, err := repo.DistrictsInState(ctx, "CA")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fresno Unified", "Oakland Unified"}, districts)

	types, err := repo.SchoolTypesInState(ctx, "CA")
	require.NoError(t, err)
	assert.Equal(t, []string{"private", "public"}, types)
}

func TestUpdateEnrollmentAndContact(t *testing.T) {
	fake := testsupport.NewFakeTableStore()
	school := entity.NewSchool("Lincoln High", "CA", "public")
	school.Enrollment = 1800
	seedSchools(fake, school)
	repo := newSchoolRepo(fake)
	ctx := context.Background()

	updated, err := repo.UpdateEnrollment(ctx, school.ID, 1850)
	require.NoError(t, err)
	assert.Equal(t, 1850, updated.Enrollment)

	contact := &entity.ContactInfo{Email: "office@lincoln.edu", Website: "lincoln.edu"}
	withContact, err := repo.UpdateContactInfo(ctx, school.ID, contact)
	require.NoError(t, err)
	require.NotNil(t, withContact.ContactInfo)
	assert.Equal(t, "https://lincoln.edu", withContact.ContactInfo.Website)
}
