package wsclient

import "github.com/fd1az/venue-gateway/internal/apperror"

func errNoEndpoints() error {
	return apperror.New(apperror.CodeProtocolDecodeError, apperror.WithMessage("protocol does not implement WsEndpoints"))
}

func errNoPrivateEndpoint() error {
	return apperror.New(apperror.CodeProtocolDecodeError, apperror.WithMessage("protocol has no private endpoint"))
}

func errNotConnected() error {
	return apperror.New(apperror.CodeDisconnected, apperror.WithMessage("client is not connected"))
}

func errClosed() error {
	return apperror.New(apperror.CodeDisconnected, apperror.WithMessage("client is closed"))
}
