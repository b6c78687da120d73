package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"translink/internal/auth"
	"translink/internal/domain"
	"translink/internal/models"
	"translink/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	queryServiceName          = "translink.booking.v1.ServiceRequestQuery"
	methodGetServiceRequest   = "/" + queryServiceName + "/GetServiceRequest"
	methodListTranslatorQuery = "/" + queryServiceName + "/ListTranslatorRequests"
)

// ServiceRequestQueryServer is the read-only booking lookup exposed over
// gRPC. Messages are google.protobuf.Struct values shaped like the JSON API.
type ServiceRequestQueryServer interface {
	GetServiceRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListTranslatorRequests(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterServiceRequestQueryServer(s grpc.ServiceRegistrar, srv ServiceRequestQueryServer) {
	s.RegisterService(&serviceRequestQueryDesc, srv)
}

var serviceRequestQueryDesc = grpc.ServiceDesc{
	ServiceName: queryServiceName,
	HandlerType: (*ServiceRequestQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetServiceRequest",
			Handler: unaryHandler(methodGetServiceRequest, func(srv ServiceRequestQueryServer) structHandler {
				return srv.GetServiceRequest
			}),
		},
		{
			MethodName: "ListTranslatorRequests",
			Handler: unaryHandler(methodListTranslatorQuery, func(srv ServiceRequestQueryServer) structHandler {
				return srv.ListTranslatorRequests
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "translink/booking/v1/query.proto",
}

type structHandler func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, pick func(ServiceRequestQueryServer) structHandler) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := pick(srv.(ServiceRequestQueryServer))
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(ctx, req.(*structpb.Struct))
		})
	}
}

// QueryService answers booking lookups for authenticated callers.
type QueryService struct {
	bookings *service.BookingService
}

func NewQueryService(bookings *service.BookingService) *QueryService {
	return &QueryService{bookings: bookings}
}

func (s *QueryService) GetServiceRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, ok := auth.FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing principal")
	}
	id := int64(req.GetFields()["id"].GetNumberValue())
	if id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	booking, err := s.bookings.Get(ctx, p, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(booking)
}

func (s *QueryService) ListTranslatorRequests(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, ok := auth.FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing principal")
	}
	if p.Role != models.RoleTranslator && !p.IsAdmin() {
		return nil, status.Error(codes.PermissionDenied, "only translators can list assigned requests")
	}

	fields := req.GetFields()
	q := models.ServiceRequestQuery{
		Page:   int(fields["page"].GetNumberValue()),
		Limit:  int(fields["limit"].GetNumberValue()),
		SortBy: fields["sortBy"].GetStringValue(),
		Order:  strings.ToUpper(fields["order"].GetStringValue()),
	}
	switch v := fields["status"].GetKind().(type) {
	case *structpb.Value_StringValue:
		q.Statuses = append(q.Statuses, models.RequestStatus(strings.ToUpper(v.StringValue)))
	case *structpb.Value_ListValue:
		for _, item := range v.ListValue.GetValues() {
			q.Statuses = append(q.Statuses, models.RequestStatus(strings.ToUpper(item.GetStringValue())))
		}
	}

	page, err := s.bookings.List(ctx, p, q)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(page)
}

// toStruct converts v through its JSON form so gRPC and HTTP clients see
// the same field names.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func toStatus(err error) error {
	msg := domain.Message(err)
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, msg)
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, msg)
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, msg)
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.FailedPrecondition, msg)
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, msg)
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
