package mocks

//go:generate mockery --name DataSource --srcpkg github.com/aevon-lab/tradepulse/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
