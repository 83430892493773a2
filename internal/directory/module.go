package directory

import (
	"go.uber.org/fx"

	"github.com/polkiloo/userdir/internal/domain/repository"
)

// Module wires the directory as the repository implementation.
var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(func(d *Directory) repository.UserRepository { return d }),
)
