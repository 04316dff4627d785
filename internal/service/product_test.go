package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/catalog/internal/domain"
	"github.com/shopcore/catalog/internal/repository"
	"github.com/shopcore/catalog/internal/storage/memory"
	apperrors "github.com/shopcore/catalog/pkg/errors"
	"github.com/shopcore/catalog/pkg/validator"
)

// --- Mock Repository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetDetail(ctx context.Context, id string) (*domain.ProductDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductDetail), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.ProductDetail, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProductDetail), args.Error(1)
}

func (m *mockProductRepository) Count(ctx context.Context, filter repository.ProductFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Resolver ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, kind domain.ReferenceKind, name string) (string, bool, error) {
	args := m.Called(ctx, kind, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

// --- Mock Events ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockEvents) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockEvents) PublishProductDeleted(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

// --- Counting store ---

// countingStorage records Remove calls on top of the memory store.
type countingStorage struct {
	*memory.Storage
	removes atomic.Int32
}

func (s *countingStorage) Remove(ctx context.Context, name string) (bool, error) {
	s.removes.Add(1)
	return s.Storage.Remove(ctx, name)
}

// --- Test Helpers ---

const (
	productID  = "65a1b2c3d4e5f60718293a4b"
	categoryID = "65a1b2c3d4e5f60718293a01"
	brandID    = "65a1b2c3d4e5f60718293a02"
	redID      = "65a1b2c3d4e5f60718293a03"
	blueID     = "65a1b2c3d4e5f60718293a05"
	size42ID   = "65a1b2c3d4e5f60718293a04"
)

type testDeps struct {
	repo     *mockProductRepository
	resolver *mockResolver
	events   *mockEvents
	store    *countingStorage
	svc      *ProductService
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T) *testDeps {
	t.Helper()
	d := &testDeps{
		repo:     new(mockProductRepository),
		resolver: new(mockResolver),
		events:   new(mockEvents),
		store:    &countingStorage{Storage: memory.New()},
	}
	d.svc = NewProductService(d.repo, d.resolver, d.store, d.events, newTestLogger())
	return d
}

func strPtr(s string) *string { return &s }
func int64Ptr(n int64) *int64 { return &n }
func intPtr(n int) *int       { return &n }

var stagedSeq atomic.Int32

// stageFile writes a temp upload the way the HTTP layer does.
func stageFile(t *testing.T, original string) domain.UploadedFile {
	t.Helper()
	storageName := fmt.Sprintf("%032x", stagedSeq.Add(1))
	path := filepath.Join(t.TempDir(), storageName)
	require.NoError(t, os.WriteFile(path, []byte("image:"+original), 0o600))
	return domain.UploadedFile{OriginalName: original, StorageName: storageName, TempPath: path}
}

func existingProduct() *domain.Product {
	return &domain.Product{
		ID:    productID,
		Name:  "Runner",
		Price: 9999,
		Stock: 4,
		Colors: []domain.ColorVariant{
			{ID: redID, Color: "red", Image: "old-red.jpg", Sizes: []domain.SizeVariant{{ID: size42ID, Size: "42", Stock: 2}}},
			{ID: blueID, Color: "blue", Image: "old-blue.jpg", Sizes: []domain.SizeVariant{}},
		},
		Version: 3,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ============================================================
// CreateProduct
// ============================================================

func TestCreateProduct_PairsFilesWithColors(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	f1 := stageFile(t, "red.photo.jpg")
	f2 := stageFile(t, "blue.png")

	d.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)
	d.events.On("PublishProductCreated", mock.Anything, mock.Anything).Return(nil)

	product, err := d.svc.CreateProduct(ctx, &ProductInput{
		Name:   strPtr("Runner"),
		Price:  int64Ptr(9999),
		Colors: []byte(`"[{\"color\":\"red\"},{\"color\":\"blue\"}]"`),
		Files:  []domain.UploadedFile{f1, f2},
	})
	require.NoError(t, err)

	require.Len(t, product.Colors, 2)
	assert.Equal(t, f1.StorageName+".jpg", product.Colors[0].Image)
	assert.Equal(t, f2.StorageName+".png", product.Colors[1].Image)
	assert.NotEqual(t, product.Colors[0].Image, product.Colors[1].Image)
	assert.True(t, domain.IsObjectID(product.ID))
	assert.True(t, domain.IsObjectID(product.Colors[0].ID))
	assert.Equal(t, 1, product.Version)

	assert.False(t, fileExists(f1.TempPath))
	assert.False(t, fileExists(f2.TempPath))
	assert.Equal(t, []string{f1.StorageName + ".jpg", f2.StorageName + ".png"}, d.store.Names())

	d.repo.AssertExpectations(t)
	d.events.AssertExpectations(t)
}

func TestCreateProduct_MoreFilesThanColors(t *testing.T) {
	d := newTestService(t)

	files := []domain.UploadedFile{stageFile(t, "a.jpg"), stageFile(t, "b.jpg"), stageFile(t, "c.jpg")}

	d.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.events.On("PublishProductCreated", mock.Anything, mock.Anything).Return(nil)

	product, err := d.svc.CreateProduct(context.Background(), &ProductInput{
		Name:   strPtr("Runner"),
		Colors: []byte(`[{"color":"red"}]`),
		Files:  files,
	})
	require.NoError(t, err)

	require.Len(t, product.Colors, 1)
	assert.Equal(t, files[0].StorageName+".jpg", product.Colors[0].Image)
	assert.Len(t, d.store.Names(), 1)
	assert.True(t, fileExists(files[1].TempPath))
	assert.True(t, fileExists(files[2].TempPath))
}

func TestCreateProduct_MoreColorsThanFiles(t *testing.T) {
	d := newTestService(t)

	file := stageFile(t, "a.jpg")

	d.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.events.On("PublishProductCreated", mock.Anything, mock.Anything).Return(nil)

	product, err := d.svc.CreateProduct(context.Background(), &ProductInput{
		Name:   strPtr("Runner"),
		Colors: []byte(`[{"color":"red"},{"color":"blue"},{"color":"green"}]`),
		Files:  []domain.UploadedFile{file},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, product.Colors[0].Image)
	assert.Empty(t, product.Colors[1].Image)
	assert.Empty(t, product.Colors[2].Image)
}

func TestCreateProduct_InvalidColorsFormat(t *testing.T) {
	d := newTestService(t)
	file := stageFile(t, "a.jpg")

	_, err := d.svc.CreateProduct(context.Background(), &ProductInput{
		Name:   strPtr("Runner"),
		Colors: []byte(`"[{\"color\":"`),
		Files:  []domain.UploadedFile{file},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "invalid colors format")

	assert.True(t, fileExists(file.TempPath))
	assert.Empty(t, d.store.Names())
	d.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_ResolvesReferences(t *testing.T) {
	d := newTestService(t)

	d.resolver.On("Resolve", mock.Anything, domain.ReferenceCategory, "sho").Return(categoryID, true, nil)
	d.resolver.On("Resolve", mock.Anything, domain.ReferenceBrand, "unknown").Return("", false, nil)
	d.repo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.CategoryID != nil && *p.CategoryID == categoryID && p.BrandID == nil
	})).Return(nil)
	d.events.On("PublishProductCreated", mock.Anything, mock.Anything).Return(nil)

	product, err := d.svc.CreateProduct(context.Background(), &ProductInput{
		Name:     strPtr("Runner"),
		Category: strPtr("sho"),
		Brands:   strPtr("unknown"),
	})
	require.NoError(t, err)
	assert.Equal(t, categoryID, *product.CategoryID)
	assert.Nil(t, product.BrandID)
	d.repo.AssertExpectations(t)
}

func TestCreateProduct_ResolverError(t *testing.T) {
	d := newTestService(t)

	d.resolver.On("Resolve", mock.Anything, domain.ReferenceCategory, "x").Return("", false, errors.New("db down"))

	_, err := d.svc.CreateProduct(context.Background(), &ProductInput{Name: strPtr("Runner"), Category: strPtr("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve category")
	d.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_ValidationFailureRemovesImages(t *testing.T) {
	d := newTestService(t)
	file := stageFile(t, "a.jpg")

	_, err := d.svc.CreateProduct(context.Background(), &ProductInput{
		Colors: []byte(`[{"color":"red"}]`),
		Files:  []domain.UploadedFile{file},
	})
	require.Error(t, err)

	var valErr *validator.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "is required", valErr.Fields()["name"])

	assert.Empty(t, d.store.Names())
	d.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_RepoFailureRemovesImages(t *testing.T) {
	d := newTestService(t)
	file := stageFile(t, "a.jpg")

	d.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	_, err := d.svc.CreateProduct(context.Background(), &ProductInput{
		Name:   strPtr("Runner"),
		Colors: []byte(`[{"color":"red"}]`),
		Files:  []domain.UploadedFile{file},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create product")
	assert.Empty(t, d.store.Names())
	d.events.AssertNotCalled(t, "PublishProductCreated", mock.Anything, mock.Anything)
}

func TestCreateProduct_CopyFailureFailsWholeCreate(t *testing.T) {
	d := newTestService(t)

	good := stageFile(t, "a.jpg")
	missing := domain.UploadedFile{OriginalName: "b.jpg", StorageName: "deadbeef", TempPath: filepath.Join(t.TempDir(), "gone")}

	_, err := d.svc.CreateProduct(context.Background(), &ProductInput{
		Name:   strPtr("Runner"),
		Colors: []byte(`[{"color":"red"},{"color":"blue"}]`),
		Files:  []domain.UploadedFile{good, missing},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store product images")
	assert.Empty(t, d.store.Names())
	d.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_RejectsClientImageName(t *testing.T) {
	d := newTestService(t)
	d.store.Seed("other-product.jpg", []byte("theirs"))

	file := stageFile(t, "red.jpg")

	_, err := d.svc.CreateProduct(context.Background(), &ProductInput{
		Name:   strPtr("Runner"),
		Colors: []byte(`[{"color":"red"},{"color":"blue","image":"other-product.jpg"}]`),
		Files:  []domain.UploadedFile{file},
	})
	require.Error(t, err)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, []string{"other-product.jpg"}, d.store.Names())
	d.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProduct_PublishErrorDoesNotFail(t *testing.T) {
	d := newTestService(t)

	d.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.events.On("PublishProductCreated", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	product, err := d.svc.CreateProduct(context.Background(), &ProductInput{Name: strPtr("Runner")})
	require.NoError(t, err)
	assert.NotNil(t, product)
	assert.NotNil(t, product.Colors)
}

// ============================================================
// GetProduct / ListProducts
// ============================================================

func TestGetProduct_Success(t *testing.T) {
	d := newTestService(t)
	detail := &domain.ProductDetail{Product: *existingProduct(), Category: &domain.Reference{ID: categoryID, Name: "Shoes"}}

	d.repo.On("GetDetail", mock.Anything, productID).Return(detail, nil)

	got, err := d.svc.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, "Shoes", got.Category.Name)
}

func TestGetProduct_NotFound(t *testing.T) {
	d := newTestService(t)

	d.repo.On("GetDetail", mock.Anything, productID).Return(nil, apperrors.NotFound("product", productID))

	_, err := d.svc.GetProduct(context.Background(), productID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListProducts_DefaultsAndResolution(t *testing.T) {
	d := newTestService(t)

	d.resolver.On("Resolve", mock.Anything, domain.ReferenceCategory, "shoes").Return(categoryID, true, nil)
	d.resolver.On("Resolve", mock.Anything, domain.ReferenceBrand, "nobody").Return("", false, nil)

	expected := repository.ProductFilter{
		Search:     strPtr("run"),
		CategoryID: strPtr(categoryID),
		Skip:       0,
		Limit:      DefaultLimit,
	}
	items := []domain.ProductDetail{{Product: *existingProduct()}}
	d.repo.On("List", mock.Anything, expected).Return(items, nil)
	d.repo.On("Count", mock.Anything, expected).Return(42, nil)

	got, total, err := d.svc.ListProducts(context.Background(), ListParams{
		Skip:     -5,
		Query:    "run",
		Category: "shoes",
		Brands:   "nobody",
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 42, total)
	d.repo.AssertExpectations(t)
}

func TestListProducts_LimitCapped(t *testing.T) {
	d := newTestService(t)

	expected := repository.ProductFilter{Skip: 20, Limit: MaxLimit}
	d.repo.On("List", mock.Anything, expected).Return([]domain.ProductDetail{}, nil)
	d.repo.On("Count", mock.Anything, expected).Return(0, nil)

	_, _, err := d.svc.ListProducts(context.Background(), ListParams{Skip: 20, Limit: 1000})
	require.NoError(t, err)
	d.repo.AssertExpectations(t)
	d.resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestListProducts_CountError(t *testing.T) {
	d := newTestService(t)

	d.repo.On("List", mock.Anything, mock.Anything).Return([]domain.ProductDetail{}, nil)
	d.repo.On("Count", mock.Anything, mock.Anything).Return(0, errors.New("timeout"))

	_, _, err := d.svc.ListProducts(context.Background(), ListParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count products")
}

// ============================================================
// UpdateProduct
// ============================================================

func TestUpdateProduct_ColorOnly(t *testing.T) {
	d := newTestService(t)

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
	d.repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	d.events.On("PublishProductUpdated", mock.Anything, mock.Anything).Return(nil)

	got, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID, ColorID: blueID},
		&ProductInput{Color: strPtr("navy"), Name: strPtr("ignored")},
	)
	require.NoError(t, err)

	orig := existingProduct()
	assert.Equal(t, "navy", got.Colors[1].Color)
	assert.Equal(t, orig.Colors[0], got.Colors[0])
	assert.Equal(t, "Runner", got.Name)
	assert.Zero(t, d.store.removes.Load())
}

func TestUpdateProduct_ColorNotFound(t *testing.T) {
	d := newTestService(t)

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)

	_, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID, ColorID: "65a1b2c3d4e5f60718293aff"},
		&ProductInput{Color: strPtr("navy")},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	d.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateProduct_ExistingSizeMerged(t *testing.T) {
	d := newTestService(t)

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
	d.repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	d.events.On("PublishProductUpdated", mock.Anything, mock.Anything).Return(nil)

	got, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID, ColorID: redID, SizeID: size42ID},
		&ProductInput{Stock: intPtr(9), Price: int64Ptr(500)},
	)
	require.NoError(t, err)

	require.Len(t, got.Colors[0].Sizes, 1)
	size := got.Colors[0].Sizes[0]
	assert.Equal(t, size42ID, size.ID)
	assert.Equal(t, "42", size.Size)
	assert.Equal(t, 9, size.Stock)
	require.NotNil(t, size.Price)
	assert.Equal(t, int64(500), *size.Price)
	assert.Equal(t, 4, got.Stock)
}

func TestUpdateProduct_MissingSizeAppended(t *testing.T) {
	d := newTestService(t)

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
	d.repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	d.events.On("PublishProductUpdated", mock.Anything, mock.Anything).Return(nil)

	missing := "65a1b2c3d4e5f60718293aee"
	got, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID, ColorID: redID, SizeID: missing},
		&ProductInput{Size: strPtr("43"), Stock: intPtr(1)},
	)
	require.NoError(t, err)

	require.Len(t, got.Colors[0].Sizes, 2)
	added := got.Colors[0].Sizes[1]
	assert.Equal(t, "43", added.Size)
	assert.True(t, domain.IsObjectID(added.ID))
	assert.NotEqual(t, missing, added.ID)
	assert.Empty(t, got.Colors[1].Sizes)
}

func TestUpdateProduct_AppendedSizeNeedsLabel(t *testing.T) {
	d := newTestService(t)

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)

	_, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID, ColorID: redID, SizeID: "65a1b2c3d4e5f60718293aee"},
		&ProductInput{Stock: intPtr(1)},
	)
	require.Error(t, err)
	var valErr *validator.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "is required", valErr.Fields()["colors[0].sizes[1].size"])
	d.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateProduct_ReplacesImageAfterSave(t *testing.T) {
	d := newTestService(t)
	d.store.Seed("old-red.jpg", []byte("old"))
	d.store.Seed("old-blue.jpg", []byte("old"))

	file := stageFile(t, "new.webp")

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
	d.repo.On("Update", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		// The old image must still exist while the document is being saved.
		ok, _ := d.store.Exists(context.Background(), "old-red.jpg")
		assert.True(t, ok)
		args.Get(1).(*domain.Product).Version++
	}).Return(nil)
	d.events.On("PublishProductUpdated", mock.Anything, mock.Anything).Return(nil)

	got, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID},
		&ProductInput{
			Colors: []byte(`[{"id":"` + redID + `","color":"red"},{"id":"` + blueID + `","color":"blue","image":"old-blue.jpg"}]`),
			Files:  []domain.UploadedFile{file},
		},
	)
	require.NoError(t, err)

	newName := file.StorageName + ".webp"
	assert.Equal(t, newName, got.Colors[0].Image)
	assert.Equal(t, redID, got.Colors[0].ID)
	assert.Equal(t, "old-blue.jpg", got.Colors[1].Image)
	assert.Equal(t, 4, got.Version)
	assert.Equal(t, []string{newName, "old-blue.jpg"}, d.store.Names())
	assert.False(t, fileExists(file.TempPath))
}

func TestUpdateProduct_SaveFailureKeepsOldImages(t *testing.T) {
	d := newTestService(t)
	d.store.Seed("old-red.jpg", []byte("old"))

	file := stageFile(t, "new.jpg")

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
	d.repo.On("Update", mock.Anything, mock.Anything).Return(apperrors.Conflict("modified concurrently"))

	_, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID},
		&ProductInput{
			Colors: []byte(`[{"color":"red"}]`),
			Files:  []domain.UploadedFile{file},
		},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, []string{"old-red.jpg"}, d.store.Names())
	d.events.AssertNotCalled(t, "PublishProductUpdated", mock.Anything, mock.Anything)
}

func TestUpdateProduct_FileWithoutExistingColorSkipped(t *testing.T) {
	d := newTestService(t)

	files := []domain.UploadedFile{stageFile(t, "a.jpg"), stageFile(t, "b.jpg"), stageFile(t, "c.jpg")}

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
	d.repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	d.events.On("PublishProductUpdated", mock.Anything, mock.Anything).Return(nil)

	got, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID},
		&ProductInput{
			Colors: []byte(`[{"color":"red"},{"color":"blue"},{"color":"green"}]`),
			Files:  files,
		},
	)
	require.NoError(t, err)

	require.Len(t, got.Colors, 3)
	assert.NotEmpty(t, got.Colors[0].Image)
	assert.NotEmpty(t, got.Colors[1].Image)
	assert.Empty(t, got.Colors[2].Image)
	assert.True(t, fileExists(files[2].TempPath))
	assert.True(t, domain.IsObjectID(got.Colors[2].ID))
}

func TestUpdateProduct_ColorTargetRemovesUnusedUploads(t *testing.T) {
	d := newTestService(t)
	d.store.Seed("old-red.jpg", []byte("old"))

	file := stageFile(t, "new.jpg")

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
	d.repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	d.events.On("PublishProductUpdated", mock.Anything, mock.Anything).Return(nil)

	got, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID, ColorID: redID},
		&ProductInput{
			Color:  strPtr("crimson"),
			Colors: []byte(`[{"color":"red"}]`),
			Files:  []domain.UploadedFile{file},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, "crimson", got.Colors[0].Color)
	assert.Equal(t, "old-red.jpg", got.Colors[0].Image)
	assert.Equal(t, []string{"old-red.jpg"}, d.store.Names())
}

func TestUpdateProduct_DroppedColorImageRemoved(t *testing.T) {
	d := newTestService(t)
	d.store.Seed("old-red.jpg", []byte("old"))
	d.store.Seed("old-blue.jpg", []byte("old"))

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
	d.repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	d.events.On("PublishProductUpdated", mock.Anything, mock.Anything).Return(nil)

	got, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID},
		&ProductInput{Colors: []byte(`[{"id":"` + redID + `","color":"red","image":"old-red.jpg"}]`)},
	)
	require.NoError(t, err)

	require.Len(t, got.Colors, 1)
	assert.Equal(t, []string{"old-red.jpg"}, d.store.Names())
}

func TestUpdateProduct_ColorImageChanges(t *testing.T) {
	tests := []struct {
		name  string
		image string
		want  []string
	}{
		{"cleared", "", []string{"old-blue.jpg"}},
		{"points at sibling image", "old-blue.jpg", []string{"old-blue.jpg"}},
		{"unchanged", "old-red.jpg", []string{"old-blue.jpg", "old-red.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestService(t)
			d.store.Seed("old-red.jpg", []byte("old"))
			d.store.Seed("old-blue.jpg", []byte("old"))

			d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
			d.repo.On("Update", mock.Anything, mock.Anything).Return(nil)
			d.events.On("PublishProductUpdated", mock.Anything, mock.Anything).Return(nil)

			got, err := d.svc.UpdateProduct(context.Background(),
				UpdateTarget{ProductID: productID, ColorID: redID},
				&ProductInput{Image: strPtr(tt.image)},
			)
			require.NoError(t, err)

			assert.Equal(t, tt.image, got.Colors[0].Image)
			assert.Equal(t, tt.want, d.store.Names())
		})
	}
}

func TestUpdateProduct_RejectsImageOfAnotherProduct(t *testing.T) {
	tests := []struct {
		name   string
		target UpdateTarget
		in     *ProductInput
	}{
		{
			name:   "color route",
			target: UpdateTarget{ProductID: productID, ColorID: redID},
			in:     &ProductInput{Image: strPtr("other-product.jpg")},
		},
		{
			name:   "colors replacement",
			target: UpdateTarget{ProductID: productID},
			in:     &ProductInput{Colors: []byte(`[{"color":"red","image":"other-product.jpg"}]`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestService(t)
			d.store.Seed("old-red.jpg", []byte("old"))
			d.store.Seed("other-product.jpg", []byte("theirs"))

			d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)

			_, err := d.svc.UpdateProduct(context.Background(), tt.target, tt.in)
			require.Error(t, err)

			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Contains(t, err.Error(), "other-product.jpg")
			assert.Equal(t, []string{"old-red.jpg", "other-product.jpg"}, d.store.Names())
			d.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateProduct_InvalidColorsFormat(t *testing.T) {
	d := newTestService(t)

	_, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID},
		&ProductInput{Colors: []byte(`"not json"`)},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	d.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	d := newTestService(t)

	d.repo.On("GetByID", mock.Anything, productID).Return(nil, apperrors.NotFound("product", productID))

	_, err := d.svc.UpdateProduct(context.Background(), UpdateTarget{ProductID: productID}, &ProductInput{Name: strPtr("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateProduct_ResolvesReferences(t *testing.T) {
	d := newTestService(t)

	existing := existingProduct()
	existing.BrandID = strPtr(brandID)

	d.repo.On("GetByID", mock.Anything, productID).Return(existing, nil)
	d.resolver.On("Resolve", mock.Anything, domain.ReferenceCategory, "boots").Return(categoryID, true, nil)
	d.resolver.On("Resolve", mock.Anything, domain.ReferenceBrand, "ghost").Return("", false, nil)
	d.repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	d.events.On("PublishProductUpdated", mock.Anything, mock.Anything).Return(nil)

	got, err := d.svc.UpdateProduct(context.Background(),
		UpdateTarget{ProductID: productID},
		&ProductInput{Category: strPtr("boots"), Brands: strPtr("ghost"), Price: int64Ptr(1)},
	)
	require.NoError(t, err)
	assert.Equal(t, categoryID, *got.CategoryID)
	assert.Equal(t, brandID, *got.BrandID)
	assert.Equal(t, int64(1), got.Price)
	require.Len(t, got.Colors, 2)
}

// ============================================================
// DeleteProduct
// ============================================================

func TestDeleteProduct_MalformedID(t *testing.T) {
	d := newTestService(t)

	err := d.svc.DeleteProduct(context.Background(), "12345")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	d.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	d.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	assert.Zero(t, d.store.removes.Load())
}

func TestDeleteProduct_RemovesDocumentThenImages(t *testing.T) {
	d := newTestService(t)
	d.store.Seed("old-red.jpg", []byte("old"))

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
	d.repo.On("Delete", mock.Anything, productID).Run(func(mock.Arguments) {
		assert.Zero(t, d.store.removes.Load())
	}).Return(nil)
	d.events.On("PublishProductDeleted", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, d.svc.DeleteProduct(context.Background(), productID))

	// old-blue.jpg is missing from the store; that is logged, not an error.
	assert.Equal(t, int32(2), d.store.removes.Load())
	assert.Empty(t, d.store.Names())
	d.repo.AssertExpectations(t)
}

func TestDeleteProduct_NoImages(t *testing.T) {
	d := newTestService(t)

	p := existingProduct()
	for i := range p.Colors {
		p.Colors[i].Image = ""
	}

	d.repo.On("GetByID", mock.Anything, productID).Return(p, nil)
	d.repo.On("Delete", mock.Anything, productID).Return(nil)
	d.events.On("PublishProductDeleted", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, d.svc.DeleteProduct(context.Background(), productID))
	assert.Zero(t, d.store.removes.Load())
}

func TestDeleteProduct_DeleteFailureKeepsImages(t *testing.T) {
	d := newTestService(t)
	d.store.Seed("old-red.jpg", []byte("old"))

	d.repo.On("GetByID", mock.Anything, productID).Return(existingProduct(), nil)
	d.repo.On("Delete", mock.Anything, productID).Return(errors.New("write concern"))

	err := d.svc.DeleteProduct(context.Background(), productID)
	require.Error(t, err)
	assert.Equal(t, []string{"old-red.jpg"}, d.store.Names())
	assert.Zero(t, d.store.removes.Load())
}

func TestDeleteProduct_NotFound(t *testing.T) {
	d := newTestService(t)

	d.repo.On("GetByID", mock.Anything, productID).Return(nil, apperrors.NotFound("product", productID))

	err := d.svc.DeleteProduct(context.Background(), productID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	d.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// ============================================================
// decodeColors
// ============================================================

func TestDecodeColors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		absent  bool
		wantErr bool
	}{
		{name: "absent", raw: "", absent: true},
		{name: "null", raw: "null", absent: true},
		{name: "empty string", raw: `""`, absent: true},
		{name: "array", raw: `[{"color":"red"},{"color":"blue"}]`, want: 2},
		{name: "encoded array", raw: `"[{\"color\":\"red\"}]"`, want: 1},
		{name: "empty array", raw: `[]`, want: 0},
		{name: "object", raw: `{"color":"red"}`, wantErr: true},
		{name: "garbage string", raw: `"[{"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			colors, err := decodeColors([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			if tt.absent {
				assert.Nil(t, colors)
				return
			}
			require.NotNil(t, colors)
			assert.Len(t, colors, tt.want)
		})
	}
}

func TestDecodeSizes_Invalid(t *testing.T) {
	_, err := decodeSizes([]byte(`"nope"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sizes format")
}
