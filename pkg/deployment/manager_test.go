package deployment

import (
	"context"
	"testing"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/config"
	"github.com/a-liut/fogplace/pkg/placement"
	"github.com/a-liut/fogplace/pkg/placement/mocks"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

type staticSource struct {
	infra *model.Infrastructure
	err   error
}

func (s *staticSource) Infrastructure() (*model.Infrastructure, error) {
	return s.infra, s.err
}

func testInfrastructure() *model.Infrastructure {
	return &model.Infrastructure{
		HostsNb: 2,
		Hosts: []model.Host{
			{Name: "node-a", CPU: 2, RAM: 4},
			{Name: "node-b", CPU: 4, RAM: 8},
		},
		Links: []model.Link{
			{Src: 0, Dst: 1, Bandwidth: 10, Latency: 2},
			{Src: 1, Dst: 0, Bandwidth: 10, Latency: 2},
		},
		EdgesNb: 2,
	}
}

func testApplication(id string) *model.Application {
	return &model.Application{
		ID:            id,
		ApplicationNb: 1,
		ComponentsNb:  2,
		Components: []model.Component{
			{Name: "front_end", Image: "nginx", CPU: 2, RAM: 2},
			{Name: "db", Image: "redis", CPU: 1, RAM: 1},
		},
		Links:   []model.ServiceLink{{ID: 0, Src: 0, Dst: 1, Bandwidth: 5, Latency: 10}},
		LinksNb: 1,
	}
}

type ManagerTestSuite struct {
	suite.Suite

	ctx       context.Context
	clientset *fake.Clientset
	manager   *Manager
}

func (s *ManagerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clientset = fake.NewSimpleClientset()
	s.manager = NewManager(
		&staticSource{infra: testInfrastructure()},
		placement.NewGreedyFirstFit(nil),
		WithAudit(true),
		WithApplier(NewKubeApplier(s.clientset, "fog")),
	)
}

func (s *ManagerTestSuite) deploymentNames() []string {
	list, err := s.clientset.AppsV1().Deployments("fog").List(s.ctx, metav1.ListOptions{})
	s.Require().NoError(err)

	var names []string
	for _, d := range list.Items {
		names = append(names, d.Name)
	}
	return names
}

func (s *ManagerTestSuite) TestAddApplication() {
	d, err := s.manager.AddApplication(s.ctx, testApplication("shop"))
	s.Require().NoError(err)

	s.Equal("shop", d.ID)
	s.Equal(map[int]int{0: 0, 1: 1}, d.Result.Mapping)
	s.False(d.CreatedAt.IsZero())

	s.ElementsMatch([]string{"shop-c0", "shop-c1"}, s.deploymentNames())

	dep, err := s.clientset.AppsV1().Deployments("fog").Get(s.ctx, "shop-c1", metav1.GetOptions{})
	s.Require().NoError(err)
	s.Equal("node-b", dep.Spec.Template.Spec.NodeName)
	s.Equal(int32(1), *dep.Spec.Replicas)
	s.Equal("shop", dep.Labels[config.ApplicationIDLabel])
	s.Equal("1", dep.Labels[config.ComponentLabel])
	s.Equal("redis", dep.Spec.Template.Spec.Containers[0].Image)
	s.Equal("1", dep.Spec.Template.Spec.Containers[0].Resources.Requests.Cpu().String())
	s.Equal("1Mi", dep.Spec.Template.Spec.Containers[0].Resources.Requests.Memory().String())

	got, ok := s.manager.GetDeploy("shop")
	s.True(ok)
	s.Same(d, got)
	s.Len(s.manager.GetDeployments(), 1)
}

func (s *ManagerTestSuite) TestAddApplicationAssignsID() {
	d, err := s.manager.AddApplication(s.ctx, testApplication(""))
	s.Require().NoError(err)

	s.NotEmpty(d.ID)
	s.Equal(d.ID, d.Application.ID)
}

func (s *ManagerTestSuite) TestAddApplicationReplaces() {
	_, err := s.manager.AddApplication(s.ctx, testApplication("shop"))
	s.Require().NoError(err)

	app := testApplication("shop")
	app.Components = app.Components[:1]
	app.Links = nil
	app.LinksNb = 0

	d, err := s.manager.AddApplication(s.ctx, app)
	s.Require().NoError(err)

	s.Len(s.manager.GetDeployments(), 1)
	s.Equal(map[int]int{0: 0}, d.Result.Mapping)
	s.Equal([]string{"shop-c0"}, s.deploymentNames())
}

func (s *ManagerTestSuite) TestAddApplicationRejected() {
	app := testApplication("big")
	app.Components[1].CPU = 100

	d, err := s.manager.AddApplication(s.ctx, app)
	s.Nil(d)

	rejected, ok := IsRejected(err)
	s.Require().True(ok)
	s.Equal("no_host_for_component_1", rejected.Evaluation.Reason)
	s.Empty(s.manager.GetDeployments())
	s.Empty(s.deploymentNames())
}

func (s *ManagerTestSuite) TestAddApplicationInvalidInput() {
	app := testApplication("bad")
	app.Links[0].Dst = 7

	_, err := s.manager.AddApplication(s.ctx, app)
	s.Equal(ErrInvalidInput, errors.Cause(err))
}

func (s *ManagerTestSuite) TestAddApplicationNil() {
	d, err := s.manager.AddApplication(s.ctx, nil)
	s.Nil(d)
	s.Equal(ErrInvalidInput, errors.Cause(err))
	s.Empty(s.manager.GetDeployments())
}

func (s *ManagerTestSuite) TestAddApplicationRollsBack() {
	app := testApplication("shop")
	app.Components[1].Image = ""

	_, err := s.manager.AddApplication(s.ctx, app)
	s.Error(err)
	s.Empty(s.manager.GetDeployments())
	s.Empty(s.deploymentNames())
}

func (s *ManagerTestSuite) TestDeleteApplication() {
	_, err := s.manager.AddApplication(s.ctx, testApplication("shop"))
	s.Require().NoError(err)

	s.Require().NoError(s.manager.DeleteApplication(s.ctx, "shop"))
	s.Empty(s.manager.GetDeployments())
	s.Empty(s.deploymentNames())

	err = s.manager.DeleteApplication(s.ctx, "shop")
	s.Equal(ErrUnknownApplication, errors.Cause(err))
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func TestManagerRejectsViolations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// claims success with a component left out
	strategy := mocks.NewMockStrategy(ctrl)
	strategy.EXPECT().Name().Return("broken").AnyTimes()
	strategy.EXPECT().Place(gomock.Any(), gomock.Any()).Return(&placement.Result{
		Strategy: "broken",
		Status:   placement.StatusOK,
		Mapping:  map[int]int{0: 0},
	})

	m := NewManager(&staticSource{infra: testInfrastructure()}, strategy, WithAudit(true))

	_, err := m.AddApplication(context.Background(), testApplication("shop"))
	rejected, ok := IsRejected(err)
	require.True(t, ok)
	assert.True(t, rejected.Evaluation.OK())
	assert.NotEmpty(t, rejected.Evaluation.Violations)
	assert.Empty(t, m.GetDeployments())
}

func TestManagerWithoutAudit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	strategy := mocks.NewMockStrategy(ctrl)
	strategy.EXPECT().Name().Return("broken").AnyTimes()
	strategy.EXPECT().Place(gomock.Any(), gomock.Any(), gomock.Any()).Return(&placement.Result{
		Strategy: "broken",
		Status:   placement.StatusOK,
		Mapping:  map[int]int{0: 0},
	})

	m := NewManager(&staticSource{infra: testInfrastructure()}, strategy)

	d, err := m.AddApplication(context.Background(), testApplication("shop"), placement.WithStartHost(1))
	require.NoError(t, err)
	assert.Equal(t, "shop", d.ID)
}

func TestManagerSourceError(t *testing.T) {
	m := NewManager(&staticSource{err: errors.New("cluster down")}, placement.NewGreedyFirstFit(nil))

	_, err := m.AddApplication(context.Background(), testApplication("shop"))
	assert.EqualError(t, err, "cannot describe infrastructure: cluster down")
}

func TestEvaluate(t *testing.T) {
	eval, err := Evaluate(placement.NewGreedyFirstFit(nil), testInfrastructure(), testApplication("x"), true, placement.WithStartHost(1))
	require.NoError(t, err)

	assert.True(t, eval.Accepted())
	assert.Equal(t, map[int]int{0: 1, 1: 1}, eval.Mapping)
	assert.Empty(t, eval.Violations)
}
